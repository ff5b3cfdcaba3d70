package store_test

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ke4ahr/pacsatd/pfh"
	"github.com/ke4ahr/pacsatd/store"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func newTestStore() (*store.Store, string) {
	dir, err := os.MkdirTemp("", "pacsat-store-*")
	Expect(err).NotTo(HaveOccurred())
	s, err := store.Open(dir, time.Hour)
	Expect(err).NotTo(HaveOccurred())
	return s, dir
}

var _ = Describe("file store", func() {
	var (
		s    *store.Store
		root string
	)

	BeforeEach(func() {
		s, root = newTestStore()
	})

	AfterEach(func() {
		s.Close()
		os.RemoveAll(root)
	})

	It("allocates strictly increasing file numbers and writes atomically", func() {
		fn1, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "HELLO", Ext: "TXT"}, []byte("hello"))
		Expect(err).NotTo(HaveOccurred())
		fn2, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "WORLD", Ext: "TXT"}, []byte("world"))
		Expect(err).NotTo(HaveOccurred())
		Expect(fn2).To(Equal(fn1 + 1))

		path, err := s.GetPath(fn1)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HavePrefix(root))
		_, err = os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lists newest-upload-first with ties broken by descending file number", func() {
		_, err := s.AddFile("CALL0", pfh.PFH{Name: "FILE0", Ext: "TXT"}, []byte("a"))
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(1100 * time.Millisecond)
		_, err = s.AddFile("CALL1", pfh.PFH{Name: "FILE1", Ext: "TXT"}, []byte("b"))
		Expect(err).NotTo(HaveOccurred())
		time.Sleep(1100 * time.Millisecond)
		_, err = s.AddFile("CALL2", pfh.PFH{Name: "FILE2", Ext: "TXT"}, []byte("c"))
		Expect(err).NotTo(HaveOccurred())

		recs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(3))
		Expect(recs[0].Filename).To(Equal("FILE2.TXT"))
		Expect(recs[1].Filename).To(Equal("FILE1.TXT"))
		Expect(recs[2].Filename).To(Equal("FILE0.TXT"))
	})

	It("round-trips a stored PFH header and body", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "HELLO", Ext: "TXT", Description: "greeting"}, []byte("hello world"))
		Expect(err).NotTo(HaveOccurred())

		rc, err := s.Open(fn)
		Expect(err).NotTo(HaveOccurred())
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())

		dec, err := pfh.Decode(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(dec.FileNum).To(Equal(fn))
		Expect(string(raw[dec.BodyOffset:])).To(Equal("hello world"))
	})

	It("inflates a compression_type=2 body back to its original bytes and length", func() {
		body := []byte("hello world, hello world, hello world")
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "GZ", Ext: "TXT", Compression: 2}, body)
		Expect(err).NotTo(HaveOccurred())

		hdr, got, err := s.ReadBody(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(body))
		Expect(hdr.BodySize).To(Equal(uint32(len(body))))

		recs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(recs[0].Size).To(Equal(uint32(len(body))))

		// The on-disk wire body is the deflated (shorter) form, confirming
		// ReadBody is doing actual decompression and not just slicing.
		rc, err := s.Open(fn)
		Expect(err).NotTo(HaveOccurred())
		raw, err := io.ReadAll(rc)
		rc.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(len(raw) - int(hdr.BodyOffset)).To(BeNumerically("<", len(body)))
	})

	It("soft-deletes into .trash and prunes empty ancestor subdirectories", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "HELLO", Ext: "TXT"}, []byte("hi"))
		Expect(err).NotTo(HaveOccurred())
		path, err := s.GetPath(fn)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Delete(fn, false)).To(Succeed())

		recs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(BeEmpty())

		trashDir := filepath.Join(root, ".trash")
		entries, err := os.ReadDir(trashDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(HavePrefix(strconv.FormatUint(uint64(fn), 10) + "_"))

		_, err = os.Stat(filepath.Dir(path))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("increments the download counter exactly n times", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "HELLO", Ext: "TXT"}, []byte("hi"))
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 5; i++ {
			Expect(s.IncrementDownloadCount(fn)).To(Succeed())
		}
		recs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(recs[0].DownloadCount).To(Equal(uint32(5)))
	})

	It("commits at a caller-supplied file number and advances the counter past it", func() {
		Expect(s.CommitAt(1001, "G0K8KA-0", pfh.PFH{Name: "HELLO", Ext: "TXT"}, []byte("hi"))).To(Succeed())

		recs, err := s.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].FileNum).To(Equal(uint32(1001)))

		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "NEXT", Ext: "TXT"}, []byte("hi"))
		Expect(err).NotTo(HaveOccurred())
		Expect(fn).To(BeNumerically(">", uint32(1001)))
	})

	It("returns only records whose filename, callsign or description matches the search term", func() {
		_, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "BEACON", Ext: "TXT", Description: "satellite beacon log"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		_, err = s.AddFile("G0K8KA-0", pfh.PFH{Name: "README", Ext: "TXT", Description: "general notes"}, []byte("y"))
		Expect(err).NotTo(HaveOccurred())

		hits, err := s.Search("beacon")
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(1))
		Expect(hits[0].Filename).To(Equal("BEACON.TXT"))
	})
})
