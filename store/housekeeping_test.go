package store_test

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/ke4ahr/pacsatd/pfh"
	"github.com/ke4ahr/pacsatd/store"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeArchiver records every key it was asked to archive, optionally
// failing on a chosen key to exercise PurgeTrash's retry-next-sweep path.
type fakeArchiver struct {
	mu       sync.Mutex
	archived []string
	failKey  string
}

func (f *fakeArchiver) Archive(_ context.Context, key, _ string) error {
	if key == f.failKey {
		return errBoom
	}
	f.mu.Lock()
	f.archived = append(f.archived, key)
	f.mu.Unlock()
	return nil
}

type boom string

func (b boom) Error() string { return string(b) }

const errBoom boom = "fakeArchiver: boom"

var _ = Describe("housekeeping", func() {
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

	It("only purges trash entries past retention", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "OLD", Ext: "TXT"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Delete(fn, false)).To(Succeed())

		purged, err := s.PurgeTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(Equal(0), "retention is one hour, nothing is old enough yet")

		entries, err := s.ListTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("purges expired trash immediately once retention is zero", func() {
		zero, dir := newZeroRetentionStore()
		defer zero.Close()
		defer os.RemoveAll(dir)

		fn, err := zero.AddFile("G0K8KA-0", pfh.PFH{Name: "OLD", Ext: "TXT"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(zero.Delete(fn, false)).To(Succeed())

		time.Sleep(10 * time.Millisecond)
		purged, err := zero.PurgeTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(Equal(1))

		entries, err := zero.ListTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("cold-archives an entry before unlinking it when an archiver is set", func() {
		zero, dir := newZeroRetentionStore()
		defer zero.Close()
		defer os.RemoveAll(dir)

		arc := &fakeArchiver{}
		zero.SetArchiver(arc)

		fn, err := zero.AddFile("G0K8KA-0", pfh.PFH{Name: "OLD", Ext: "TXT"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(zero.Delete(fn, false)).To(Succeed())

		time.Sleep(10 * time.Millisecond)
		purged, err := zero.PurgeTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(Equal(1))
		Expect(arc.archived).To(HaveLen(1))
	})

	It("leaves an entry in trash for the next sweep when its archive upload fails", func() {
		zero, dir := newZeroRetentionStore()
		defer zero.Close()
		defer os.RemoveAll(dir)

		fn, err := zero.AddFile("G0K8KA-0", pfh.PFH{Name: "OLD", Ext: "TXT"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(zero.Delete(fn, false)).To(Succeed())

		entries, err := zero.ListTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))

		arc := &fakeArchiver{failKey: entries[0].Name}
		zero.SetArchiver(arc)

		time.Sleep(10 * time.Millisecond)
		purged, err := zero.PurgeTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(purged).To(Equal(0))

		remaining, err := zero.ListTrash()
		Expect(err).NotTo(HaveOccurred())
		Expect(remaining).To(HaveLen(1))
	})

	It("reports live and trash occupancy", func() {
		_, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "A", Ext: "TXT"}, []byte("hello"))
		Expect(err).NotTo(HaveOccurred())
		fn2, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "B", Ext: "TXT"}, []byte("world!"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Delete(fn2, false)).To(Succeed())

		stats, err := s.GetStats()
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.LiveFiles).To(Equal(1))
		Expect(stats.TrashFiles).To(Equal(1))
		Expect(stats.TotalBytes).To(Equal(int64(len("hello"))))
	})

	It("recovers a soft-deleted file back into the live set", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "REC", Ext: "TXT"}, []byte("recoverable"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Delete(fn, false)).To(Succeed())

		_, err = s.GetPath(fn)
		Expect(err).To(Equal(store.ErrNotFound))

		Expect(s.Recover(fn)).To(Succeed())

		rec, ok := s.GetInfo(fn)
		Expect(ok).To(BeTrue())
		Expect(rec.Callsign).To(Equal("G0K8KA-0"))
		Expect(rec.Filename).To(Equal("REC.TXT"))

		_, body, err := s.ReadBody(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(body).To(Equal([]byte("recoverable")))
	})

	It("rejects recovering a file that is already live", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "LIVE", Ext: "TXT"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Recover(fn)).To(HaveOccurred())
	})

	It("rejects recovering a file with no trash entry", func() {
		Expect(s.Recover(9999)).To(Equal(store.ErrNotFound))
	})

	It("never touches live files when maxAgeDays is disabled", func() {
		fn, err := s.AddFile("G0K8KA-0", pfh.PFH{Name: "KEEP", Ext: "TXT"}, []byte("x"))
		Expect(err).NotTo(HaveOccurred())

		report, err := s.BulkCleanup(0, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.SoftDeleted).To(Equal(0))

		_, ok := s.GetInfo(fn)
		Expect(ok).To(BeTrue())
	})
})

func newZeroRetentionStore() (*store.Store, string) {
	dir, err := os.MkdirTemp("", "pacsat-store-zero-*")
	Expect(err).NotTo(HaveOccurred())
	s, err := store.Open(dir, 0)
	Expect(err).NotTo(HaveOccurred())
	return s, dir
}
