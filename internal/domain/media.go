package domain

type Media struct {
	Id            string  `json:"id"`
	Name          string  `json:"name"`
	SourceRef     string  `json:"source_ref"`
	Duration      float64 `json:"duration"`
	ContentLength int64   `json:"content_length,omitempty"`
	ChangedBy     string  `json:"changed_by"`
	ChangedAt     int64   `json:"changed_at"`
}

type ChatMessage struct {
	Id        string `json:"id"`
	Text      string `json:"text"`
	Type      string `json:"type"`
	FromId    string `json:"from_id"`
	Nickname  string `json:"nickname"`
	CreatedAt int64  `json:"created_at"`
}

type Danmaku struct {
	Id        string  `json:"id"`
	Text      string  `json:"text"`
	Color     string  `json:"color"`
	VideoTime float64 `json:"video_time"`
	FromId    string  `json:"from_id"`
	Nickname  string  `json:"nickname"`
	CreatedAt int64   `json:"created_at"`
}
