package cycle_test

import (
	"encoding/json"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tanalyzer_go/internal/cycle"
)

var _ = Describe("Extremum", func() {
	It("should start empty", func() {
		e := cycle.NewExtremum()

		Expect(e.IsEmpty()).To(BeTrue())
		Expect(math.IsInf(float64(e.Min), 1)).To(BeTrue())
		Expect(math.IsInf(float64(e.Max), -1)).To(BeTrue())

		_, _, ok := e.Range()
		Expect(ok).To(BeFalse())
	})

	It("should track the true minimum and maximum", func() {
		values := []float32{0.5, -1, 3, 2.25, -0.75, 3, -1}
		e := cycle.NewExtremum()
		for _, v := range values {
			e.Observe(v)
		}

		min, max, ok := e.Range()
		Expect(ok).To(BeTrue())
		Expect(min).To(Equal(float32(-1)))
		Expect(max).To(Equal(float32(3)))
		for _, v := range values {
			Expect(min).To(BeNumerically("<=", v))
			Expect(max).To(BeNumerically(">=", v))
		}
	})

	It("should collapse to a point after a single observation", func() {
		e := cycle.NewExtremum()
		e.Observe(4.5)

		Expect(e.IsEmpty()).To(BeFalse())
		Expect(e.Min).To(Equal(float32(4.5)))
		Expect(e.Max).To(Equal(float32(4.5)))
	})

	It("should become empty again after reset", func() {
		e := cycle.NewExtremum()
		e.Observe(1)
		e.Reset()

		Expect(e.IsEmpty()).To(BeTrue())
	})

	It("should treat the zero value as the point range zero", func() {
		var e cycle.Extremum

		Expect(e.IsEmpty()).To(BeFalse())
		min, max, ok := e.Range()
		Expect(ok).To(BeTrue())
		Expect(min).To(BeZero())
		Expect(max).To(BeZero())

		e.Observe(5)
		Expect(e.Min).To(BeZero())
		Expect(e.Max).To(Equal(float32(5)))
	})

	It("should not carry the zero value through reset", func() {
		var e cycle.Extremum
		e.Reset()

		Expect(e.IsEmpty()).To(BeTrue())
		e.Observe(5)
		Expect(e.Min).To(Equal(float32(5)))
	})

	It("should ignore NaN", func() {
		e := cycle.NewExtremum()
		e.Observe(float32(math.NaN()))

		Expect(e.IsEmpty()).To(BeTrue())
	})
})

var _ = Describe("Extremum JSON", func() {
	It("should encode finite values as numbers", func() {
		e := cycle.Extremum{Min: -1.5, Max: 3}

		data, err := json.Marshal(e)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"min":-1.5,"max":3}`))
	})

	It("should round trip an empty accumulator", func() {
		data, err := json.Marshal(cycle.NewExtremum())
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"min":"+Inf","max":"-Inf"}`))

		var back cycle.Extremum
		Expect(json.Unmarshal(data, &back)).To(Succeed())
		Expect(back.IsEmpty()).To(BeTrue())
	})

	It("should reject garbage", func() {
		var back cycle.Extremum
		Expect(json.Unmarshal([]byte(`{"min":"abc","max":1}`), &back)).NotTo(Succeed())
	})
})
