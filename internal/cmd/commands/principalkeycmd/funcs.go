package principalkeycmd

import (
	"time"

	"github.com/hashicorp/tde/internal/cmd/base"
	"github.com/hashicorp/tde/internal/kms"
)

type keyItem struct {
	KeyName       string    `json:"key_name"`
	KeyVersion    uint32    `json:"key_version"`
	VersionedName string    `json:"versioned_name"`
	DatabaseId    uint32    `json:"database_id"`
	TablespaceId  uint32    `json:"tablespace_id"`
	ProviderId    uint32    `json:"provider_id"`
	ProviderName  string    `json:"provider_name"`
	ProviderType  string    `json:"provider_type"`
	CreateTime    time.Time `json:"create_time"`
}

func newKeyItem(d *kms.KeyDescription) keyItem {
	return keyItem{
		KeyName:       d.KeyId.Name,
		KeyVersion:    d.KeyId.Version,
		VersionedName: d.KeyId.VersionedName(),
		DatabaseId:    d.Scope.DatabaseId,
		TablespaceId:  d.Scope.TablespaceId,
		ProviderId:    d.ProviderId,
		ProviderName:  d.ProviderName,
		ProviderType:  d.ProviderType.String(),
		CreateTime:    d.CreateTime,
	}
}

func printKeyTable(d *kms.KeyDescription) string {
	nonAttributeMap := map[string]any{
		"Key Name":      d.KeyId.Name,
		"Key Version":   d.KeyId.Version,
		"Provider Name": d.ProviderName,
		"Provider Type": d.ProviderType.String(),
		"Scope":         d.Scope.String(),
		"Created Time":  d.CreateTime.Local().Format(time.RFC1123),
	}

	maxLength := base.MaxAttributesLength(nonAttributeMap)

	ret := []string{
		"",
		"Principal Key information:",
		base.WrapMap(2, maxLength+2, nonAttributeMap),
		"",
	}

	return base.WrapForHelpText(ret)
}
