package api

import "seat-checkin-backend/internal/roster"

type problemResponse struct {
	Kind    string `json:"kind"`
	Row     int    `json:"row"`
	FirstAt int    `json:"firstAt,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func problemList(problems []roster.Problem) []problemResponse {
	out := make([]problemResponse, 0, len(problems))
	for _, p := range problems {
		out = append(out, problemResponse{
			Kind:    string(p.Kind),
			Row:     p.Row,
			FirstAt: p.FirstAt,
			Value:   p.Value,
			Message: p.String(),
		})
	}
	return out
}
