package rlc

// Арифметика GF(2^8) с порождающим полиномом 0x11d (x^8+x^4+x^3+x^2+1).
// Таблицы логарифмов/степеней строятся один раз при инициализации пакета;
// умножение идет через полную таблицу 256x256, как в классических
// реализациях кодов Рида-Соломона.

var (
	gfExp [512]byte // удвоенная, чтобы не брать остаток при умножении через логи
	gfLog [256]byte
	gfMul [256][256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < 255; i++ {
		gfExp[i] = x
		gfExp[i+255] = x
		gfLog[x] = byte(i)
		// x *= 2 в GF(2^8)
		carry := x&0x80 != 0
		x <<= 1
		if carry {
			x ^= 0x1d
		}
	}
	for a := 1; a < 256; a++ {
		for b := 1; b < 256; b++ {
			gfMul[a][b] = gfExp[int(gfLog[a])+int(gfLog[b])]
		}
	}
}

func mul(a, b byte) byte {
	return gfMul[a][b]
}

func div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	// b == 0 — ошибка вызывающего; пивоты всегда ненулевые.
	d := int(gfLog[a]) - int(gfLog[b])
	if d < 0 {
		d += 255
	}
	return gfExp[d]
}

func inv(a byte) byte {
	return gfExp[255-int(gfLog[a])]
}

// coefficient возвращает коэффициент repair-символа с ключом key для
// символа со смещением offset от начала окна: g^(key*offset). Строки с
// последовательными ключами над различными столбцами g^offset образуют
// матрицу Вандермонда, поэтому независимы.
func coefficient(key uint32, offset int) byte {
	e := (int(key%255) * (offset % 255)) % 255
	return gfExp[e]
}

// mulAddInto прибавляет c*src к dst поэлементно (в GF сложение — XOR).
func mulAddInto(dst, src []byte, c byte) {
	if c == 0 {
		return
	}
	if c == 1 {
		for i := range dst {
			dst[i] ^= src[i]
		}
		return
	}
	row := &gfMul[c]
	for i := range dst {
		dst[i] ^= row[src[i]]
	}
}

// scaleInto умножает вектор на скаляр на месте.
func scaleInto(v []byte, c byte) {
	if c == 1 {
		return
	}
	row := &gfMul[c]
	for i := range v {
		v[i] = row[v[i]]
	}
}
