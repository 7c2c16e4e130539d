package search

type GlobalSearchQuery struct {
	Query string `query:"q" json:"q" mod:"trim" validate:"required,min=1,max=100"`
}

// GlobalSearchResponse holds up to five results per resource type.
type GlobalSearchResponse struct {
	Books   []BookSearchResult   `json:"books"`
	Members []MemberSearchResult `json:"members"`
}

type BookSearchResult struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
}

type MemberSearchResult struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
