package dto

import (
	"profile-forms/internal/apperr"
	"profile-forms/internal/listctl"
)

// ListView is one profile section as the form renders it.
type ListView[T any] struct {
	Mode      listctl.Mode       `json:"mode"`
	ActiveID  string             `json:"active_id,omitempty"`
	Active    *listctl.Entry[T]  `json:"active,omitempty"`
	Errors    apperr.FieldErrors `json:"errors,omitempty"`
	LastError string             `json:"last_error,omitempty"`
	Entries   []listctl.Entry[T] `json:"entries"`
}

func NewListView[T any](st listctl.State[T], entries []listctl.Entry[T]) ListView[T] {
	v := ListView[T]{
		Mode:     st.Mode,
		ActiveID: st.ActiveID,
		Active:   st.Active,
		Errors:   st.Errors,
		Entries:  entries,
	}
	if st.Err != nil {
		v.LastError = st.Err.Error()
	}
	if v.Entries == nil {
		v.Entries = []listctl.Entry[T]{}
	}
	return v
}

type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}
