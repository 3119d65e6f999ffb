package entity

// Entity is anything stored under a stable document id.
type Entity interface {
	Slug() string
}
