package server

import (
	"tftgg/internal/gql"
)

// QueryRequest is the payload for POST /api/v1/query. Complexity defaults
// to 1 when omitted.
type QueryRequest struct {
	Operation  string   `json:"operation" binding:"required"`
	Args       gql.Args `json:"args"`
	Complexity int      `json:"complexity" binding:"omitempty,min=1"`
}

// QueryResponse wraps a resolved query result.
type QueryResponse struct {
	Data      gql.Result `json:"data"`
	RequestID string     `json:"requestId"`
	TookMS    int64      `json:"tookMs"`
}
