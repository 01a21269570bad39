package keyproviderscmd

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/keyring"
)

type providerItem struct {
	Id           uint32          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	DatabaseId   uint32          `json:"database_id"`
	TablespaceId uint32          `json:"tablespace_id"`
	Options      json.RawMessage `json:"options"`
}

func newProviderItem(p *keyring.Provider) providerItem {
	return providerItem{
		Id:           p.Id,
		Name:         p.Name,
		Type:         p.Type.String(),
		DatabaseId:   p.Scope.DatabaseId,
		TablespaceId: p.Scope.TablespaceId,
		Options:      json.RawMessage(p.Options),
	}
}

func newProviderItems(providers []*keyring.Provider) []providerItem {
	items := make([]providerItem, 0, len(providers))
	for _, p := range providers {
		items = append(items, newProviderItem(p))
	}
	return items
}

func printProviderTable(p *keyring.Provider) string {
	nonAttributeMap := map[string]any{
		"ID":      p.Id,
		"Name":    p.Name,
		"Type":    p.Type.String(),
		"Scope":   p.Scope.String(),
		"Options": string(p.Options),
	}

	maxLength := base.MaxAttributesLength(nonAttributeMap)

	ret := []string{
		"",
		"Key Provider information:",
		base.WrapMap(2, maxLength+2, nonAttributeMap),
		"",
	}

	return base.WrapForHelpText(ret)
}

func printProviderListTable(providers []*keyring.Provider) string {
	if len(providers) == 0 {
		return "No key providers found"
	}

	output := []string{
		"",
		"Key Provider information:",
	}
	for i, p := range providers {
		if i > 0 {
			output = append(output, "")
		}
		output = append(output,
			fmt.Sprintf("  ID:               %d", p.Id),
			fmt.Sprintf("    Name:           %s", p.Name),
			fmt.Sprintf("    Type:           %s", p.Type),
			fmt.Sprintf("    Scope:          %s", p.Scope),
		)
	}

	return base.WrapForHelpText(output)
}
