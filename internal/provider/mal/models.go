package mal

// animeNode is the provider-native anime shape returned by the MAL v2 API.
type animeNode struct {
	ID                int                `json:"id"`
	Title             string             `json:"title"`
	MainPicture       *picture           `json:"main_picture"`
	AlternativeTitles *alternativeTitles `json:"alternative_titles"`
	StartDate         string             `json:"start_date"`
	EndDate           string             `json:"end_date"`
	Synopsis          string             `json:"synopsis"`
	Mean              float64            `json:"mean"`
	Rank              int                `json:"rank"`
	Popularity        int                `json:"popularity"`
	NumEpisodes       int                `json:"num_episodes"`
	Status            string             `json:"status"`
	Genres            []genre            `json:"genres"`
	MediaType         string             `json:"media_type"`
	Rating            string             `json:"rating"`
	AverageEpDuration int                `json:"average_episode_duration"`
}

type picture struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type alternativeTitles struct {
	Synonyms []string `json:"synonyms"`
	En       string   `json:"en"`
	Ja       string   `json:"ja"`
}

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// listResponse is the envelope for /anime, /anime/season and /anime/ranking.
type listResponse struct {
	Data []struct {
		Node animeNode `json:"node"`
	} `json:"data"`
	Paging struct {
		Total    int    `json:"total"`
		Next     string `json:"next"`
		Previous string `json:"previous"`
	} `json:"paging"`
}
