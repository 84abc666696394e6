package dto

import "encoding/json"

type SaveContentRequest struct {
	Data    json.RawMessage `json:"data" validate:"required"`
	Version int             `json:"version" validate:"gte=0"`
}
