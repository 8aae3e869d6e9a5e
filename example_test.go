package regionmap_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/regionmap"
	"github.com/hupe1980/regionmap/filemap"
)

// Example demonstrates writing through one Mapping and reading it back
// after the region was recycled.
func Example() {
	dir, err := os.MkdirTemp("", "regionmap-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	const regionSize = 1 << 16
	m, err := regionmap.OpenExpandable(filepath.Join(dir, "data.bin"), filemap.ReadWriteClear, regionSize,
		regionmap.WithCacheSize(2),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	mp := m.NewMapping()
	mp.MoveTo(3*regionSize + 10)
	copy(mp.Buffer(), "hello")

	// Recycle the slot region 3 lives in.
	mp.MoveTo(5 * regionSize)
	mp.MoveTo(3*regionSize + 10)

	fmt.Println(string(mp.Buffer()[:5]))
	fmt.Println(mp.RegionStartPosition(), mp.Offset(), mp.BytesAvailable())
	// Output:
	// hello
	// 196608 10 65526
}

// ExampleOffsetMapping_BinarySearchLast finds the end of a record log.
func ExampleOffsetMapping_BinarySearchLast() {
	dir, err := os.MkdirTemp("", "regionmap-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	const regionSize = 1 << 16
	m, err := regionmap.OpenExpandable(filepath.Join(dir, "log.bin"), filemap.ReadWriteClear, regionSize)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	om := m.NewOffsetMapping()
	for i := int64(0); i < 20000; i++ {
		om.MoveTo(i * 8)
		om.Buffer()[0] = 1
	}

	last := om.BinarySearchLast(0, 8, func(buf []byte) bool { return buf[0] != 0 })
	fmt.Println(last / 8)
	// Output: 19999
}
