package cos_test

import (
	"errors"

	"github.com/ke4ahr/pacsatd/internal/cos"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("session IDs", func() {
	BeforeEach(func() {
		cos.InitShortID(1)
	})

	It("generates valid, unique IDs", func() {
		a := cos.GenUUID()
		b := cos.GenUUID()
		Expect(a).NotTo(Equal(b))
		Expect(cos.IsValidUUID(a)).To(BeTrue())
		Expect(cos.IsValidUUID(b)).To(BeTrue())
	})

	It("rejects IDs that are too short", func() {
		Expect(cos.IsValidUUID("ab")).To(BeFalse())
	})
})

var _ = Describe("Errs", func() {
	It("aggregates distinct errors up to the cap", func() {
		var e cos.Errs
		for i := 0; i < 10; i++ {
			e.Add(errors.New("boom"))
		}
		Expect(e.Cnt()).To(Equal(1)) // dedup on message

		e.Add(errors.New("bang"))
		Expect(e.Cnt()).To(Equal(2))
		Expect(e.Error()).To(ContainSubstring("and 1 more error"))
	})
})
