package keyring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/hashicorp/tde/internal/errors"
	"github.com/hashicorp/tde/internal/event"
)

const (
	// MaxConfigDepth is the hard cap on nesting in a configuration
	// document.  The dialect only needs two meaningful levels; the cap
	// keeps a hostile document from walking the parser arbitrarily deep.
	MaxConfigDepth = 16

	// maxIndirectionSize bounds the value fetched through a file or remote
	// indirection.  Oversized values fail resolution, they are not
	// truncated.
	maxIndirectionSize = 1024
)

// Config is the parsed configuration of a provider.  It is a sealed sum
// type: FileConfig and VaultV2Config are the only implementations, so a
// switch over the concrete types is exhaustive.
type Config interface {
	// ProviderType reports which variant this is.
	ProviderType() ProviderType

	sealedConfig()
}

// FileConfig configures a file keyring.
type FileConfig struct {
	// Path of the keyring store file.
	Path string
}

// ProviderType reports the variant
func (*FileConfig) ProviderType() ProviderType { return ProviderTypeFile }

func (*FileConfig) sealedConfig() {}

// VaultV2Config configures a Vault KV version 2 keyring.
type VaultV2Config struct {
	// Token authenticating against Vault.
	Token TokenSecret

	// Address of the Vault server.
	Address string

	// MountPath of the KV v2 secrets engine.
	MountPath string

	// CaPath optionally points at a CA certificate file for TLS.
	CaPath string
}

// ProviderType reports the variant
func (*VaultV2Config) ProviderType() ProviderType { return ProviderTypeVaultV2 }

func (*VaultV2Config) sealedConfig() {}

// allowedFields whitelists the configuration fields per provider type.
// Unknown fields are reported and ignored.
var allowedFields = map[ProviderType][]string{
	ProviderTypeFile:    {"type", "path"},
	ProviderTypeVaultV2: {"type", "token", "url", "mountPath", "caPath"},
}

// ParseConfig parses a provider configuration document for the given type.
//
// The document is a single json object whose fields are scalar strings.  A
// field's value may instead be one indirection object of the form
// {"type":"file","path":P} or {"type":"remote","url":U}; the referenced
// value is fetched (bounded, trailing whitespace trimmed) and substituted.
// Only one level of indirection is evaluated.  Unknown fields are reported
// and ignored.  A failed indirection resolves the field to null and is left
// to required-field validation when the keyring is built; it does not abort
// the parse.
func ParseConfig(ctx context.Context, typ ProviderType, raw []byte, opt ...Option) (Config, error) {
	const op = "keyring.ParseConfig"
	switch typ {
	case ProviderTypeFile, ProviderTypeVaultV2:
	default:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing provider type")
	}
	if len(raw) == 0 {
		return nil, errors.New(ctx, errors.InvalidConfiguration, op, "missing configuration")
	}
	if len(raw) > MaxOptionsLength {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("configuration of %d bytes exceeds the %d byte limit", len(raw), MaxOptionsLength))
	}
	opts := getOpts(opt...)

	p := &configParser{
		typ:     typ,
		allowed: allowedFields[typ],
		dec:     json.NewDecoder(bytes.NewReader(raw)),
		client:  opts.withIndirectionClient,
		fields:  make(map[string]*string),
	}
	p.dec.UseNumber()
	if err := p.parse(ctx); err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	c, err := p.build(ctx)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return c, nil
}

// configParser walks the document token by token, tracking the field path
// it is inside and the nesting level, so truncated and overly nested
// documents fail deterministically.
type configParser struct {
	typ     ProviderType
	allowed []string
	dec     *json.Decoder
	client  *retryablehttp.Client

	// fields holds the resolved top-level fields; nil marks a field whose
	// indirection failed to resolve.
	fields map[string]*string

	// stack is the field path being descended, for diagnostics.
	stack []string

	// level is the current nesting level, bounded by MaxConfigDepth.
	level int
}

func (p *configParser) token(ctx context.Context) (json.Token, error) {
	const op = "keyring.(configParser).token"
	tok, err := p.dec.Token()
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidConfiguration),
			errors.WithMsg("malformed configuration document"))
	}
	return tok, nil
}

func (p *configParser) descend(ctx context.Context) error {
	const op = "keyring.(configParser).descend"
	p.level++
	if p.level > MaxConfigDepth {
		return errors.New(ctx, errors.ConfigExceedsDepth, op,
			fmt.Sprintf("configuration nested deeper than %d levels", MaxConfigDepth))
	}
	return nil
}

func (p *configParser) path(extra ...string) string {
	return strings.Join(append(append([]string(nil), p.stack...), extra...), ".")
}

func (p *configParser) parse(ctx context.Context) error {
	const op = "keyring.(configParser).parse"
	tok, err := p.token(ctx)
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New(ctx, errors.InvalidConfiguration, op, "configuration must be a json object")
	}
	if err := p.descend(ctx); err != nil {
		return err
	}
	for {
		tok, err := p.token(ctx)
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			p.level--
			break
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New(ctx, errors.InvalidConfiguration, op, "malformed configuration document")
		}
		if !strutil.StrListContains(p.allowed, key) {
			// unknown fields are skipped whatever shape their value has, so
			// documents written for a newer release still parse
			p.stack = append(p.stack, key)
			err := p.skipValue(ctx)
			p.stack = p.stack[:len(p.stack)-1]
			if err != nil {
				return err
			}
			event.WriteSysEvent(ctx, op, "ignoring unknown configuration field",
				"field", key, "provider_type", p.typ.String())
			continue
		}
		p.stack = append(p.stack, key)
		val, err := p.parseValue(ctx, key)
		p.stack = p.stack[:len(p.stack)-1]
		if err != nil {
			return err
		}
		p.fields[key] = val
	}
	if p.dec.More() {
		return errors.New(ctx, errors.InvalidConfiguration, op, "unexpected data after configuration object")
	}
	return nil
}

func (p *configParser) parseValue(ctx context.Context, key string) (*string, error) {
	const op = "keyring.(configParser).parseValue"
	tok, err := p.token(ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil { // json null
		return nil, nil
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.parseIndirection(ctx, key)
		default:
			return nil, errors.New(ctx, errors.InvalidConfiguration, op,
				fmt.Sprintf("field %q: arrays are not supported", p.path()))
		}
	case string:
		return &t, nil
	default:
		return nil, errors.New(ctx, errors.InvalidConfiguration, op,
			fmt.Sprintf("field %q must be a string", p.path()))
	}
}

// parseIndirection consumes one indirection object and resolves it.  A
// resolution failure is reported and yields null; validation of the null
// happens when the keyring is built.
func (p *configParser) parseIndirection(ctx context.Context, key string) (*string, error) {
	const op = "keyring.(configParser).parseIndirection"
	if err := p.descend(ctx); err != nil {
		return nil, err
	}
	var indType, indPath, indUrl *string
	for {
		tok, err := p.token(ctx)
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			p.level--
			break
		}
		ikey, ok := tok.(string)
		if !ok {
			return nil, errors.New(ctx, errors.InvalidConfiguration, op, "malformed configuration document")
		}
		vtok, err := p.token(ctx)
		if err != nil {
			return nil, err
		}
		if d, ok := vtok.(json.Delim); ok {
			switch d {
			case '{', '[':
				// only one level of indirection: a nested structure is
				// consumed but never evaluated
				if err := p.skipStructure(ctx); err != nil {
					return nil, err
				}
				event.WriteSysEvent(ctx, op, "nested value in indirection object is not evaluated",
					"field", p.path(ikey))
				continue
			}
		}
		s, ok := vtok.(string)
		if !ok {
			event.WriteSysEvent(ctx, op, "ignoring non-string field in indirection object",
				"field", p.path(ikey))
			continue
		}
		switch ikey {
		case "type":
			indType = &s
		case "path":
			indPath = &s
		case "url":
			indUrl = &s
		default:
			event.WriteSysEvent(ctx, op, "ignoring unknown field in indirection object",
				"field", p.path(ikey))
		}
	}

	var resolved *string
	var resolveErr error
	switch {
	case indType == nil:
		resolveErr = errors.New(ctx, errors.InvalidConfiguration, op, "indirection object has no type", errors.WithoutEvent())
	case strings.EqualFold(*indType, "file"):
		if indPath == nil {
			resolveErr = errors.New(ctx, errors.InvalidConfiguration, op, "file indirection has no path", errors.WithoutEvent())
			break
		}
		resolved, resolveErr = readFileValue(ctx, *indPath)
	case strings.EqualFold(*indType, "remote"):
		if indUrl == nil {
			resolveErr = errors.New(ctx, errors.InvalidConfiguration, op, "remote indirection has no url", errors.WithoutEvent())
			break
		}
		resolved, resolveErr = p.fetchRemoteValue(ctx, *indUrl)
	default:
		resolveErr = errors.New(ctx, errors.InvalidConfiguration, op,
			fmt.Sprintf("unknown indirection type %q", *indType), errors.WithoutEvent())
	}
	if resolveErr != nil {
		// the field stays null; whether that's fatal is decided by the
		// keyring's required-field validation
		event.WriteSysEvent(ctx, op, "could not resolve configuration value",
			"field", p.path(), "error", resolveErr.Error())
		return nil, nil
	}
	return resolved, nil
}

// skipValue consumes one value of any shape.
func (p *configParser) skipValue(ctx context.Context) error {
	tok, err := p.token(ctx)
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); ok {
		switch d {
		case '{', '[':
			return p.skipStructure(ctx)
		}
	}
	return nil
}

// skipStructure consumes one already-opened object or array, keeping the
// depth accounting honest.
func (p *configParser) skipStructure(ctx context.Context) error {
	if err := p.descend(ctx); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok, err := p.token(ctx)
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
				if err := p.descend(ctx); err != nil {
					return err
				}
			case '}', ']':
				depth--
				p.level--
			}
		}
	}
	return nil
}

func (p *configParser) build(ctx context.Context) (Config, error) {
	const op = "keyring.(configParser).build"
	if v := p.fields["type"]; v != nil && !strings.EqualFold(*v, p.typ.String()) {
		return nil, errors.New(ctx, errors.InvalidConfiguration, op,
			fmt.Sprintf("configuration type %q does not match provider type %q", *v, p.typ.String()))
	}
	get := func(k string) string {
		if v := p.fields[k]; v != nil {
			return *v
		}
		return ""
	}
	switch p.typ {
	case ProviderTypeFile:
		return &FileConfig{Path: get("path")}, nil
	default:
		return &VaultV2Config{
			Token:     TokenSecret(get("token")),
			Address:   get("url"),
			MountPath: get("mountPath"),
			CaPath:    get("caPath"),
		}, nil
	}
}

func readFileValue(ctx context.Context, path string) (*string, error) {
	const op = "keyring.readFileValue"
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io), errors.WithoutEvent())
	}
	defer f.Close()
	b, err := io.ReadAll(io.LimitReader(f, maxIndirectionSize+1))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io), errors.WithoutEvent())
	}
	if len(b) > maxIndirectionSize {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("indirection value in %s exceeds the %d byte limit", path, maxIndirectionSize), errors.WithoutEvent())
	}
	s := strings.TrimRight(string(b), " \t\r\n")
	return &s, nil
}

func (p *configParser) fetchRemoteValue(ctx context.Context, url string) (*string, error) {
	const op = "keyring.(configParser).fetchRemoteValue"
	client := p.client
	if client == nil {
		client = newIndirectionClient()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.InvalidParameter), errors.WithoutEvent())
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable), errors.WithoutEvent())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(ctx, errors.Unavailable, op,
			fmt.Sprintf("fetching %s returned status %d", url, resp.StatusCode), errors.WithoutEvent())
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxIndirectionSize+1))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Io), errors.WithoutEvent())
	}
	if len(b) > maxIndirectionSize {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("indirection value from %s exceeds the %d byte limit", url, maxIndirectionSize), errors.WithoutEvent())
	}
	s := strings.TrimRight(string(b), " \t\r\n")
	return &s, nil
}

// newIndirectionClient builds the default http client for remote
// indirections: pooled transport, a couple of retries, no request logging.
func newIndirectionClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient = cleanhttp.DefaultPooledClient()
	c.RetryMax = 2
	c.Logger = nil
	return c
}
