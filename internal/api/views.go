package api

import (
	"time"

	"github.com/nerrad567/parambridge-core/internal/param"
)

// parameterView is the JSON representation of a bridged parameter.
type parameterView struct {
	EndpointID    string            `json:"endpoint_id"`
	Path          string            `json:"path"`
	Type          string            `json:"type"`
	Writable      bool              `json:"writable"`
	AllowedValues []string          `json:"allowed_values,omitempty"`
	Units         string            `json:"units,omitempty"`
	Value         any               `json:"value"`
	Status        string            `json:"status"`
	Generation    uint64            `json:"generation"`
	FirstSeen     uint64            `json:"first_seen"`
	UpdatedAt     time.Time         `json:"updated_at"`
	PendingWrite  *pendingWriteView `json:"pending_write,omitempty"`
}

type pendingWriteView struct {
	ID          string    `json:"id"`
	Value       any       `json:"value"`
	RequestedAt time.Time `json:"requested_at"`
}

func toParameterView(p *param.Parameter) parameterView {
	v := parameterView{
		EndpointID:    p.EndpointID,
		Path:          p.Path,
		Type:          string(p.Type),
		Writable:      p.Writable,
		AllowedValues: p.AllowedValues,
		Units:         p.Units,
		Value:         p.Value,
		Status:        string(p.Status),
		Generation:    p.Generation,
		FirstSeen:     p.FirstSeen,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.PendingWrite != nil {
		v.PendingWrite = &pendingWriteView{
			ID:          p.PendingWrite.ID,
			Value:       p.PendingWrite.Value,
			RequestedAt: p.PendingWrite.RequestedAt,
		}
	}
	return v
}

func toParameterViews(params []param.Parameter) []parameterView {
	views := make([]parameterView, len(params))
	for i := range params {
		views[i] = toParameterView(&params[i])
	}
	return views
}
