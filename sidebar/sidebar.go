// Package sidebar keeps the console's services navigation in sync with the
// service registry. Metadata is cached as JSON; the rendered HTML goes through
// Store.Changed so pages only redraw when the list actually changed.
package sidebar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/unkn0wn-root/anthillstore"
)

const (
	MetadataKey = "servicesMetadata"
	HTMLKey     = "html_sidebar_data"
)

// ServicesMetadataQuery is the GraphQL query sent to the public API.
const ServicesMetadataQuery = `query {
  servicesMetadata {
    name, title, description, iconClass, color, version, debug, publicApiUrl, uptime, logUrl
  }
}`

type ServiceMetadata struct {
	Name         string  `json:"name"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	IconClass    string  `json:"iconClass"`
	Color        string  `json:"color,omitempty"`
	Version      string  `json:"version,omitempty"`
	Debug        bool    `json:"debug,omitempty"`
	PublicAPIURL string  `json:"publicApiUrl,omitempty"`
	Uptime       float64 `json:"uptime,omitempty"`
	LogURL       string  `json:"logUrl,omitempty"`
}

// Fetcher loads the current service list.
type Fetcher func(ctx context.Context) ([]ServiceMetadata, error)

var entryTmpl = template.Must(template.New("sidebar").Parse(
	`{{range .}}<li class="navigation-service {{if .Active}}active{{end}}" data-name="{{.Name}}">` +
		`<a href="/services/{{.Name}}/"><i class="{{.IconClass}}"></i> <span>{{.Title}}</span></a></li>{{end}}`))

type Registry struct {
	store anthillstore.Cache
	log   anthillstore.Logger
}

func New(store anthillstore.Cache, log anthillstore.Logger) *Registry {
	if log == nil {
		log = anthillstore.NopLogger{}
	}
	return &Registry{store: store, log: log}
}

// Refresh stores the fetched list. A failed fetch stores an empty list so the
// sidebar empties instead of showing stale services.
func (r *Registry) Refresh(ctx context.Context, fetch Fetcher) error {
	services, err := fetch(ctx)
	if err != nil {
		r.log.Warn("services metadata fetch failed", anthillstore.Fields{"err": err})
		services = []ServiceMetadata{}
	}
	if services == nil {
		services = []ServiceMetadata{}
	}
	return r.store.SetItem(ctx, MetadataKey, services, anthillstore.JSON)
}

// Services returns the cached list; empty when nothing was refreshed yet.
func (r *Registry) Services(ctx context.Context) ([]ServiceMetadata, error) {
	var services []ServiceMetadata
	if _, err := r.store.Load(ctx, MetadataKey, &services, anthillstore.JSON); err != nil {
		return nil, err
	}
	return services, nil
}

// Render builds the navigation entries, marking active as the current service,
// and reports whether the HTML differs from the previous render.
func (r *Registry) Render(ctx context.Context, active string) (string, bool, error) {
	services, err := r.Services(ctx)
	if err != nil {
		return "", false, err
	}
	type view struct {
		ServiceMetadata
		Active bool
	}
	views := make([]view, len(services))
	for i, s := range services {
		views[i] = view{ServiceMetadata: s, Active: s.Name == active}
	}

	var buf bytes.Buffer
	if err := entryTmpl.Execute(&buf, views); err != nil {
		return "", false, fmt.Errorf("sidebar: render: %w", err)
	}
	html := buf.String()
	changed, err := r.store.Changed(ctx, HTMLKey, html)
	if err != nil {
		return html, false, err
	}
	return html, changed, nil
}

// GraphQLFetcher posts ServicesMetadataQuery to url.
func GraphQLFetcher(client *http.Client, url string) Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) ([]ServiceMetadata, error) {
		body, err := json.Marshal(map[string]string{"query": ServicesMetadataQuery})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("sidebar: services query: unexpected status %d", resp.StatusCode)
		}
		var out struct {
			Data struct {
				ServicesMetadata []ServiceMetadata `json:"servicesMetadata"`
			} `json:"data"`
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("sidebar: decode services: %w", err)
		}
		if len(out.Errors) > 0 {
			return nil, fmt.Errorf("sidebar: services query: %s", out.Errors[0].Message)
		}
		return out.Data.ServicesMetadata, nil
	}
}
