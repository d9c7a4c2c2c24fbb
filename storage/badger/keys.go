package badger

import (
	"github.com/poiesic/regmap/core"
	"github.com/poiesic/regmap/storage"
)

// Key prefixes for different data types
const (
	vectorPrefix = "vec"
)

// makeVectorKey generates a composite key for a cached vector.
// Format: prefix:namespace:id, with the ID in big-endian bytes.
func makeVectorKey(namespace string, id core.ID) []byte {
	prefix := makeNamespacePrefix(namespace)
	buf := make([]byte, 0, len(prefix)+8)
	buf = append(buf, prefix...)
	return append(buf, storage.MarshalID(id)...)
}

// makeNamespacePrefix generates the partial key shared by a namespace.
// Format: prefix:namespace:
func makeNamespacePrefix(namespace string) []byte {
	buf := make([]byte, 0, len(vectorPrefix)+len(namespace)+2)
	buf = append(buf, vectorPrefix...)
	buf = append(buf, ':')
	buf = append(buf, namespace...)
	return append(buf, ':')
}
