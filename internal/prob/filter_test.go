package prob_test

import (
	"github.com/ke4ahr/pacsatd/internal/prob"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("cuckoo filter", func() {
	It("reports lookup misses for keys never inserted", func() {
		f := prob.NewDefault(1024)
		Expect(f.Lookup([]byte("absent"))).To(BeFalse())
	})

	It("inserts a key once and finds it on lookup", func() {
		f := prob.NewDefault(1024)
		Expect(f.InsertUnique([]byte("fn-1001"))).To(BeTrue())
		Expect(f.Lookup([]byte("fn-1001"))).To(BeTrue())
		Expect(f.InsertUnique([]byte("fn-1001"))).To(BeFalse())
	})

	It("stops reporting a key once deleted", func() {
		f := prob.NewDefault(1024)
		f.InsertUnique([]byte("fn-2000"))
		Expect(f.Delete([]byte("fn-2000"))).To(BeTrue())
		Expect(f.Lookup([]byte("fn-2000"))).To(BeFalse())
	})

	It("forgets everything after Reset", func() {
		f := prob.NewDefault(1024)
		f.InsertUnique([]byte("a"))
		f.InsertUnique([]byte("b"))
		f.Reset(1024)
		Expect(f.Lookup([]byte("a"))).To(BeFalse())
		Expect(f.Count()).To(Equal(uint(0)))
	})
})
