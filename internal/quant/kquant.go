package quant

// getScaleMinK4 unpacks the j-th (6-bit scale, 6-bit min) pair from the
// 12-byte packed scales array shared by Q4_K and Q5_K super-blocks. Eight
// sub-blocks of 32 elements each share one 256-element super-block;
// scales/mins are stored 6 bits each, packed across 12 bytes so that the
// first four sub-blocks' values sit in whole bytes and the last four
// borrow the spare two bits from the first four's bytes.
func getScaleMinK4(j int, scales []byte) (sc, m uint8) {
	if j < 4 {
		sc = scales[j] & 63
		m = scales[j+4] & 63
	} else {
		sc = (scales[j+4] & 0x0F) | ((scales[j-4] >> 6) << 4)
		m = (scales[j+4] >> 4) | ((scales[j] >> 6) << 4)
	}
	return sc, m
}

// dequantQ4_K decodes Q4_K super-blocks: f16 delta + f16 min + 12 bytes of
// packed sub-block scales/mins + 128 nibble-packed bytes (256 4-bit
// values). Reproduces ggml's dequantize_row_q4_K sub-block walk.
func dequantQ4_K(row []byte, out []float32) {
	nb := NumBlocks(KindQ4_K, len(row))
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ4_K : (b+1)*blockBytesQ4_K]
		d := decodeF16(block[0:2])
		dmin := decodeF16(block[2:4])
		scales := block[4 : 4+kScaleSize]
		qs := block[4+kScaleSize:]
		o := out[b*blockElemsQKK:]

		is := 0
		oi := 0
		for j := 0; j < blockElemsQKK; j += 64 {
			sc1, m1 := getScaleMinK4(is, scales)
			sc2, m2 := getScaleMinK4(is+1, scales)
			d1 := d * float32(sc1)
			mm1 := dmin * float32(m1)
			d2 := d * float32(sc2)
			mm2 := dmin * float32(m2)

			q := qs[j/2 : j/2+32]
			for l := 0; l < 32; l++ {
				o[oi+l] = d1*float32(q[l]&0x0F) - mm1
			}
			for l := 0; l < 32; l++ {
				o[oi+32+l] = d2*float32(q[l]>>4) - mm2
			}
			oi += 64
			is += 2
		}
	}
}

// dequantQ5_K decodes Q5_K super-blocks: as Q4_K plus a 32-byte high-bit
// plane that promotes each 4-bit nibble to 5 bits.
func dequantQ5_K(row []byte, out []float32) {
	nb := NumBlocks(KindQ5_K, len(row))
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ5_K : (b+1)*blockBytesQ5_K]
		d := decodeF16(block[0:2])
		dmin := decodeF16(block[2:4])
		scales := block[4 : 4+kScaleSize]
		qh := block[4+kScaleSize : 4+kScaleSize+32]
		qs := block[4+kScaleSize+32:]
		o := out[b*blockElemsQKK:]

		is := 0
		oi := 0
		var u1, u2 byte = 1, 2
		for j := 0; j < blockElemsQKK; j += 64 {
			sc1, m1 := getScaleMinK4(is, scales)
			sc2, m2 := getScaleMinK4(is+1, scales)
			d1 := d * float32(sc1)
			mm1 := dmin * float32(m1)
			d2 := d * float32(sc2)
			mm2 := dmin * float32(m2)

			ql := qs[j/2 : j/2+32]
			for l := 0; l < 32; l++ {
				hi := 0
				if qh[l]&u1 != 0 {
					hi = 16
				}
				o[oi+l] = d1*float32(int(ql[l]&0x0F)+hi) - mm1
			}
			for l := 0; l < 32; l++ {
				hi := 0
				if qh[l]&u2 != 0 {
					hi = 16
				}
				o[oi+32+l] = d2*float32(int(ql[l]>>4)+hi) - mm2
			}
			oi += 64
			is += 2
			u1 <<= 2
			u2 <<= 2
		}
	}
}

// dequantQ6_K decodes Q6_K super-blocks: 128 bytes of low 4 bits, 64
// bytes of high 2 bits, 16 signed 8-bit per-sub-block scales, one f16
// super-block scale. Each 256-value block is walked in two 128-value
// halves.
func dequantQ6_K(row []byte, out []float32) {
	nb := NumBlocks(KindQ6_K, len(row))
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ6_K : (b+1)*blockBytesQ6_K]
		ql := block[0:128]
		qh := block[128:192]
		sc := block[192:208]
		d := decodeF16(block[208:210])
		o := out[b*blockElemsQKK:]

		oi := 0
		for half := 0; half < 2; half++ {
			qlh := ql[half*64 : half*64+64]
			qhh := qh[half*32 : half*32+32]
			sch := sc[half*8 : half*8+8]
			for l := 0; l < 32; l++ {
				is := l / 16
				q1 := int(qlh[l]&0x0F) | (int(qhh[l]>>0&3) << 4)
				q2 := int(qlh[l+32]&0x0F) | (int(qhh[l]>>2&3) << 4)
				q3 := int(qlh[l]>>4) | (int(qhh[l]>>4&3) << 4)
				q4 := int(qlh[l+32]>>4) | (int(qhh[l]>>6&3) << 4)
				o[oi+l] = d * float32(int8(sch[is])) * float32(q1-32)
				o[oi+l+32] = d * float32(int8(sch[is+2])) * float32(q2-32)
				o[oi+l+64] = d * float32(int8(sch[is+4])) * float32(q3-32)
				o[oi+l+96] = d * float32(int8(sch[is+6])) * float32(q4-32)
			}
			oi += 128
		}
	}
}
