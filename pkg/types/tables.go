package types

// Collection names inside the primary store.
const (
	CollectionItems  = "items"
	CollectionFields = "field_definitions"
)

// StandardCollections lists every collection created on first open.
var StandardCollections = []string{
	CollectionItems,
	CollectionFields,
}
