package mangadex

// response wraps every API payload.
type response[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type manga struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
}

type mangaWithChapters struct {
	Manga    manga     `json:"manga"`
	Chapters []chapter `json:"chapters"`
	Groups   []group   `json:"groups"`
}

type chapter struct {
	ID         uint64   `json:"id"`
	MangaTitle string   `json:"mangaTitle"`
	Volume     string   `json:"volume"`
	Chapter    string   `json:"chapter"`
	Language   string   `json:"language"`
	Groups     []uint32 `json:"groups"`
	Timestamp  int64    `json:"timestamp"`
}

type group struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

type chapterDetail struct {
	ID             uint64   `json:"id"`
	Hash           string   `json:"hash"`
	Volume         string   `json:"volume"`
	Chapter        string   `json:"chapter"`
	Language       string   `json:"language"`
	Pages          []string `json:"pages"`
	Server         string   `json:"server"`
	ServerFallback string   `json:"serverFallback"`
}
