package movies

// Movie represents a movie as served by the movies API
type Movie struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Genre      []string `json:"genre"`
	Rating     float64  `json:"rating"`
	Director   string   `json:"director"`
	Actors     []string `json:"actors"`
	Plot       string   `json:"plot"`
	Poster     string   `json:"poster"`
	Trailer    string   `json:"trailer"`
	Runtime    int      `json:"runtime"`
	Awards     string   `json:"awards"`
	Country    string   `json:"country"`
	Language   string   `json:"language"`
	BoxOffice  string   `json:"boxOffice"`
	Production string   `json:"production"`
	Website    string   `json:"website"`
}
