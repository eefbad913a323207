package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"profile-forms/internal/apperr"
	"profile-forms/internal/auth"
	"profile-forms/internal/listctl"
)

// ResourceAPI is the resource half of *Client.
type ResourceAPI interface {
	CreateResource(ctx context.Context, creds auth.Credentials, kind string, payload any) (json.RawMessage, error)
	UpdateResource(ctx context.Context, creds auth.Credentials, kind, id string, payload any) (json.RawMessage, error)
	ListResources(ctx context.Context, creds auth.Credentials, kind, ownerID string) ([]json.RawMessage, error)
}

// ResourceStore binds the client to one resource kind and owner so it can
// back a listctl.Controller.
type ResourceStore[T any] struct {
	client ResourceAPI
	kind   string
	owner  string
	creds  auth.Provider
}

func NewResourceStore[T any](client ResourceAPI, kind, owner string, creds auth.Provider) *ResourceStore[T] {
	return &ResourceStore[T]{client: client, kind: kind, owner: owner, creds: creds}
}

func (s *ResourceStore[T]) Create(ctx context.Context, fields T) (listctl.Record[T], error) {
	creds, ok := auth.Resolve(ctx, s.creds)
	if !ok {
		return listctl.Record[T]{}, apperr.ErrMissingCredentials
	}
	payload, err := s.payload(fields)
	if err != nil {
		return listctl.Record[T]{}, err
	}
	raw, err := s.client.CreateResource(ctx, creds, s.kind, payload)
	if err != nil {
		return listctl.Record[T]{}, err
	}
	return decodeRecord[T](raw)
}

func (s *ResourceStore[T]) Update(ctx context.Context, id string, fields T) (listctl.Record[T], error) {
	creds, ok := auth.Resolve(ctx, s.creds)
	if !ok {
		return listctl.Record[T]{}, apperr.ErrMissingCredentials
	}
	payload, err := s.payload(fields)
	if err != nil {
		return listctl.Record[T]{}, err
	}
	raw, err := s.client.UpdateResource(ctx, creds, s.kind, id, payload)
	if err != nil {
		return listctl.Record[T]{}, err
	}
	return decodeRecord[T](raw)
}

func (s *ResourceStore[T]) List(ctx context.Context) ([]listctl.Record[T], error) {
	creds, ok := auth.Resolve(ctx, s.creds)
	if !ok {
		return nil, apperr.ErrMissingCredentials
	}
	raws, err := s.client.ListResources(ctx, creds, s.kind, s.owner)
	if err != nil {
		return nil, err
	}
	out := make([]listctl.Record[T], 0, len(raws))
	for _, raw := range raws {
		rec, err := decodeRecord[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// payload flattens fields into a JSON object and tags it with the owner.
func (s *ResourceStore[T]) payload(fields T) (map[string]any, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.kind, err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.kind, err)
	}
	m["owner"] = s.owner
	return m, nil
}

func decodeRecord[T any](raw json.RawMessage) (listctl.Record[T], error) {
	var head struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return listctl.Record[T]{}, apperr.Network("decode record", err)
	}
	var fields T
	if err := json.Unmarshal(raw, &fields); err != nil {
		return listctl.Record[T]{}, apperr.Network("decode record", err)
	}
	return listctl.Record[T]{ID: head.Name, Fields: fields}, nil
}
