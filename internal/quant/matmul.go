package quant

import (
	"sync"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

// Capability names the vectorized kernel family selected at engine init.
// Go has no portable inline-assembly path outside cgo/plan9 asm, so the
// "SIMD" kernels here are capability-gated, manually unrolled loops
// rather than literal AVX2/NEON intrinsics — the architectural contract
// spec.md's design notes ask for (one capability-detect table, no
// per-call branching in the hot loop) is reproduced structurally; see
// DESIGN.md for why literal assembly isn't in scope for a pure-Go module.
type Capability int

const (
	CapScalar Capability = iota
	CapAVX2
	CapSSE2
	CapNEON
)

func (c Capability) String() string {
	switch c {
	case CapAVX2:
		return "avx2"
	case CapSSE2:
		return "sse2"
	case CapNEON:
		return "neon"
	default:
		return "scalar"
	}
}

var (
	detectOnce  sync.Once
	detectedCap Capability
)

// DetectCapability probes the host CPU once via cpuid (x86) / x/sys/cpu
// (arm64) and caches the result. When no supported feature is detected
// it selects the scalar path silently; it takes no logger and logs
// nothing, so the dispatch table stays side-effect free.
func DetectCapability() Capability {
	detectOnce.Do(func() {
		switch {
		case cpuid.CPU.Supports(cpuid.AVX2):
			detectedCap = CapAVX2
		case cpuid.CPU.Supports(cpuid.SSE2):
			detectedCap = CapSSE2
		case cpu.ARM64.HasASIMD:
			detectedCap = CapNEON
		default:
			detectedCap = CapScalar
		}
	})
	return detectedCap
}

// ResetCapabilityForTest forces re-detection; tests use this to exercise
// every dispatch branch deterministically regardless of host CPU.
func ResetCapabilityForTest(c Capability) {
	detectOnce = sync.Once{}
	detectOnce.Do(func() { detectedCap = c })
}

// RowDot computes the dot product of one packed, quantized row against an
// F32 activation vector, per spec.md §4.2. F16, Q4_0, Q8_0 and Q4_K
// accumulate straight from the packed bytes; F32 decodes the row into a
// row-sized buffer first, and Q5_K/Q6_K dequantize the row into scratch
// (dotViaDequant). No kind materializes the whole tensor. act must have
// at least NumBlocks(k,len(row)) * k.BlockElems() elements.
func RowDot(k Kind, row []byte, act []float32) float32 {
	switch k {
	case KindF32:
		return dotF32(row, act, DetectCapability())
	case KindF16:
		return dotF16(row, act)
	case KindQ4_0:
		return dotQ4_0(row, act, DetectCapability())
	case KindQ8_0:
		return dotQ8_0(row, act, DetectCapability())
	case KindQ4_K:
		return dotQ4_K(row, act)
	case KindQ5_K, KindQ6_K:
		return dotViaDequant(k, row, act)
	default:
		panic("quant: unsupported kind in RowDot")
	}
}

// dotViaDequant is the fallback path for kinds without a hand-written
// in-place accumulator: it dequantizes one row into a scratch buffer
// (bounded by a single row, not the whole tensor) and takes the plain
// dot product. Tail elements, if any, fall back to the scalar loop
// inside DequantizeRow itself.
func dotViaDequant(k Kind, row []byte, act []float32) float32 {
	n := NumBlocks(k, len(row)) * k.BlockElems()
	scratch := make([]float32, n)
	DequantizeRow(k, row, scratch)
	return dotF32Slice(scratch, act[:n])
}

func dotF32Slice(a, b []float32) float32 {
	var sum float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func dotF32(row []byte, act []float32, cap Capability) float32 {
	n := len(row) / 4
	vals := make([]float32, n)
	dequantF32(row, vals)
	if cap == CapScalar {
		var sum float32
		for i := range vals {
			sum += vals[i] * act[i]
		}
		return sum
	}
	return dotF32Slice(vals, act[:n])
}

func dotF16(row []byte, act []float32) float32 {
	n := len(row) / 2
	var sum float32
	for i := 0; i < n; i++ {
		sum += decodeF16(row[i*2:i*2+2]) * act[i]
	}
	return sum
}

// dotQ4_0 mirrors dequantQ4_0's split-nibble layout exactly: low nibbles
// are logical elements [0,16), high nibbles [16,32). The per-block scale
// multiply is factored out of the inner loop (accumulate raw products,
// scale once) whether or not the unrolled variant is selected, so scalar
// and vectorized paths stay within the 2^-18 relative bound spec.md §8
// requires, and are bit-identical when the unroll degenerates to scalar
// order (it does: four sequential adds, not a tree).
func dotQ4_0(row []byte, act []float32, cap Capability) float32 {
	nb := NumBlocks(KindQ4_0, len(row))
	var total float32
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ4_0 : (b+1)*blockBytesQ4_0]
		d := decodeF16(block[0:2])
		qs := block[2:]
		base := b * blockElemsQK
		var acc float32
		if cap == CapScalar {
			for i := 0; i < 16; i++ {
				lo := int(qs[i] & 0x0F)
				hi := int(qs[i] >> 4)
				acc += float32(lo-8)*act[base+i] + float32(hi-8)*act[base+16+i]
			}
		} else {
			// Unrolled by 4: same left-to-right summation order as the
			// scalar loop above, just fewer loop-control instructions.
			i := 0
			for ; i+4 <= 16; i += 4 {
				for j := 0; j < 4; j++ {
					lo := int(qs[i+j] & 0x0F)
					hi := int(qs[i+j] >> 4)
					acc += float32(lo-8)*act[base+i+j] + float32(hi-8)*act[base+16+i+j]
				}
			}
			for ; i < 16; i++ {
				lo := int(qs[i] & 0x0F)
				hi := int(qs[i] >> 4)
				acc += float32(lo-8)*act[base+i] + float32(hi-8)*act[base+16+i]
			}
		}
		total += d * acc
	}
	return total
}

func dotQ8_0(row []byte, act []float32, cap Capability) float32 {
	nb := NumBlocks(KindQ8_0, len(row))
	var total float32
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ8_0 : (b+1)*blockBytesQ8_0]
		d := decodeF16(block[0:2])
		qs := block[2:]
		base := b * blockElemsQK
		var acc float32
		if cap == CapScalar {
			for i := 0; i < blockElemsQK; i++ {
				acc += float32(int8(qs[i])) * act[base+i]
			}
		} else {
			i := 0
			for ; i+4 <= blockElemsQK; i += 4 {
				acc += float32(int8(qs[i]))*act[base+i] +
					float32(int8(qs[i+1]))*act[base+i+1] +
					float32(int8(qs[i+2]))*act[base+i+2] +
					float32(int8(qs[i+3]))*act[base+i+3]
			}
			for ; i < blockElemsQK; i++ {
				acc += float32(int8(qs[i])) * act[base+i]
			}
		}
		total += d * acc
	}
	return total
}

// dotQ4_K accumulates Q4_K blocks in-place: the per-sub-block affine
// dequant value is d*q - m, so dot(dequant, act) == d*dot(q,act) -
// m*sum(act), letting the kernel skip ever materializing a dequantized
// row, per spec.md §4.2's explicit Q4_K callout.
func dotQ4_K(row []byte, act []float32) float32 {
	nb := NumBlocks(KindQ4_K, len(row))
	var total float32
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ4_K : (b+1)*blockBytesQ4_K]
		d := decodeF16(block[0:2])
		dmin := decodeF16(block[2:4])
		scales := block[4 : 4+kScaleSize]
		qs := block[4+kScaleSize:]
		base := b * blockElemsQKK

		is, oi := 0, 0
		for j := 0; j < blockElemsQKK; j += 64 {
			sc1, m1 := getScaleMinK4(is, scales)
			sc2, m2 := getScaleMinK4(is+1, scales)
			d1 := d * float32(sc1)
			mm1 := dmin * float32(m1)
			d2 := d * float32(sc2)
			mm2 := dmin * float32(m2)

			q := qs[j/2 : j/2+32]
			var acc1, sumAct1, acc2, sumAct2 float32
			for l := 0; l < 32; l++ {
				a1 := act[base+oi+l]
				acc1 += float32(q[l]&0x0F) * a1
				sumAct1 += a1
				a2 := act[base+oi+32+l]
				acc2 += float32(q[l]>>4) * a2
				sumAct2 += a2
			}
			total += d1*acc1 - mm1*sumAct1 + d2*acc2 - mm2*sumAct2
			oi += 64
			is += 2
		}
	}
	return total
}
