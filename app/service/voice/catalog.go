package voice

// Voice is one entry of the platform synthesis voice catalog as reported
// by the browser.
type Voice struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// Catalog is the read-only shared voice list. It may be empty right after
// page start and populate later; Changed signals catalog updates.
type Catalog interface {
	Voices() []Voice
	Changed() <-chan struct{}
}
