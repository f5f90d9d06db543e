package handlers

import (
	"net/http"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"aidispatch/internal/domain"
	"aidispatch/internal/providers"
)

type operationView struct {
	Operation domain.Operation     `json:"operation"`
	Model     domain.ModelMetadata `json:"model"`
}

type providerView struct {
	Name        domain.ProviderName `json:"name"`
	DisplayName string              `json:"displayName"`
	APIEndpoint string              `json:"apiEndpoint"`
	Default     bool                `json:"default"`
	Operations  []operationView     `json:"operations"`
}

// Providers lists every registered provider with the operations it serves.
func (a *App) Providers(w http.ResponseWriter, r *http.Request) {
	title := cases.Title(language.English)
	opMap := providers.OperationMap()
	items := make([]providerView, 0, len(opMap))
	for _, name := range a.Catalog.Names() {
		p, err := a.Catalog.Provider(string(name))
		if err != nil {
			continue
		}
		view := providerView{
			Name:        name,
			DisplayName: title.String(string(name)),
			APIEndpoint: p.ProviderInfo().APIEndpoint,
			Default:     name == domain.DefaultProvider,
			Operations:  []operationView{},
		}
		for _, op := range opMap[name] {
			model, err := p.ModelInfo(op)
			if err != nil {
				a.logger().Warn().Err(err).Str("provider", string(name)).Str("operation", string(op)).Msg("providers: catalog entry without model")
				continue
			}
			view.Operations = append(view.Operations, operationView{Operation: op, Model: model})
		}
		items = append(items, view)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
