package api

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/spendlens/pkg/auth"
	"github.com/hazyhaar/spendlens/pkg/kit"
	"github.com/hazyhaar/spendlens/pkg/spend"
)

// Shared request/response types used by both HTTP and MCP transports.

type loginReq struct {
	Password string
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type datasetReq struct {
	ID string
}

type datasetsResponse struct {
	Datasets []spend.DatasetInfo `json:"datasets"`
}

type seriesResponse struct {
	ID            string           `json:"id"`
	Values        []string         `json:"values"`
	DefaultValues []string         `json:"default_values"`
	Rows          []map[string]any `json:"rows"`
}

type topReq struct {
	ID    string
	Month string
	Value string
	N     int
}

type topResponse struct {
	ID      string                `json:"id"`
	Month   string                `json:"month"`
	Value   string                `json:"value"`
	Entries []spend.CreativeEntry `json:"entries"`
}

type selectReq struct {
	ID     string
	Choice string
}

type searchReq struct {
	Query string
	Limit int
}

type searchResponse struct {
	Query string            `json:"query"`
	Hits  []spend.SearchHit `json:"hits"`
	Total int               `json:"total"`
}

// Endpoints backed by the registry and the session store.

func loginEndpoint(store *auth.Store) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*loginReq)
		token, expires, err := store.Login(req.Password)
		if err != nil {
			return nil, err
		}
		return loginResponse{Token: token, ExpiresAt: expires}, nil
	}
}

func listDatasetsEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		return datasetsResponse{Datasets: reg.List()}, nil
	}
}

func statsEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*datasetReq)
		return reg.Summary(req.ID)
	}
}

func seriesEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*datasetReq)
		series, values, defaults, err := reg.Series(req.ID)
		if err != nil {
			return nil, err
		}

		rows := make([]map[string]any, len(series))
		for i, sr := range series {
			row := make(map[string]any, len(sr.Values)+1)
			row["date"] = sr.Month
			for v, spendUSD := range sr.Values {
				row[v] = spendUSD
			}
			rows[i] = row
		}
		return seriesResponse{
			ID:            req.ID,
			Values:        values,
			DefaultValues: defaults,
			Rows:          rows,
		}, nil
	}
}

func topEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*topReq)
		entries, err := reg.Top(req.ID, req.Month, req.Value, req.N)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []spend.CreativeEntry{}
		}
		month, value := req.Month, req.Value
		if len(entries) > 0 {
			month, value = entries[0].Month, entries[0].Value
		}
		return topResponse{ID: req.ID, Month: month, Value: value, Entries: entries}, nil
	}
}

func selectorEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*datasetReq)
		return reg.SelectorState(req.ID)
	}
}

func selectMonthEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*selectReq)
		if req.Choice == "" {
			return nil, fmt.Errorf("missing month")
		}
		return reg.SelectMonth(req.ID, req.Choice)
	}
}

func selectValueEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*selectReq)
		if req.Choice == "" {
			return nil, fmt.Errorf("missing value")
		}
		return reg.SelectValue(req.ID, req.Choice)
	}
}

func searchEndpoint(reg *spend.Registry) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*searchReq)
		hits := reg.Search(req.Query, req.Limit)
		return searchResponse{Query: req.Query, Hits: hits, Total: len(hits)}, nil
	}
}
