package remote

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/rss"
)

// CheckMethod is the method invoked on checker services.
const CheckMethod = "Check"

// Checker returns an executor that delegates to service. The request carries
// the checker metadata, the check kind, the field arguments and the fetched
// data under the keys of sets.
func (t *Transport) Checker(service string, metadata attribution.CheckerMetadata, sets map[string]*rss.RequiredSelectionSet) (checker.Executor, error) {
	if service == "" {
		return nil, fmt.Errorf("remote: empty service name")
	}
	return &remoteChecker{transport: t, service: service, metadata: metadata, sets: sets}, nil
}

type remoteChecker struct {
	transport *Transport
	service   string
	metadata  attribution.CheckerMetadata
	sets      map[string]*rss.RequiredSelectionSet
}

func (c *remoteChecker) Metadata() attribution.CheckerMetadata { return c.metadata }

func (c *remoteChecker) RequiredSelectionSets() map[string]*rss.RequiredSelectionSet { return c.sets }

func (c *remoteChecker) Execute(ctx context.Context, args map[string]any, objectData map[string]objectdata.EngineObjectData, kind checker.Kind) checker.Result {
	req, err := c.request(ctx, args, objectData, kind)
	if err != nil {
		return checker.Deny(fmt.Errorf("checker %s: %w", c.metadata, err))
	}
	resp := &structpb.Struct{}
	if err := c.transport.Call(ctx, c.service, CheckMethod, req, resp); err != nil {
		return checker.Deny(fmt.Errorf("checker %s: %s", c.metadata, status.Convert(err).Message()))
	}
	return decodeResult(c.service, resp)
}

func (c *remoteChecker) request(ctx context.Context, args map[string]any, objectData map[string]objectdata.EngineObjectData, kind checker.Kind) (*structpb.Struct, error) {
	data := make(map[string]any, len(objectData))
	for _, key := range slices.Sorted(maps.Keys(objectData)) {
		m, err := objectdata.ToMap(ctx, objectData[key])
		if err != nil {
			return nil, err
		}
		data[key] = normalize(m)
	}
	return structpb.NewStruct(map[string]any{
		"checker":   c.metadata.CheckerName,
		"type":      c.metadata.TypeName,
		"field":     c.metadata.FieldName,
		"kind":      string(kind),
		"arguments": normalize(args),
		"data":      data,
	})
}

// decodeResult reads {"allowed": bool, "message": string}. A missing
// "allowed" denies.
func decodeResult(service string, resp *structpb.Struct) checker.Result {
	fields := resp.GetFields()
	if fields["allowed"].GetBoolValue() {
		return checker.Success
	}
	if msg := fields["message"].GetStringValue(); msg != "" {
		return checker.Denyf("%s", msg)
	}
	return checker.Denyf("denied by %s", service)
}

// normalize rewrites values into the shapes structpb.NewValue accepts.
func normalize(v any) any {
	switch v := v.(type) {
	case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64, []byte:
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			for iter := rv.MapRange(); iter.Next(); {
				out[iter.Key().String()] = normalize(iter.Value().Interface())
			}
			return out
		}
	}
	return fmt.Sprint(v)
}
