// Package prime finds the nearest prime number to a given bound, backed
// by a sieved bit vector of 16-bit odd primes.
package prime

import (
	"math"
	"sync"

	"github.com/thanhtphung/sysnetkit/bitvec"
)

const (
	minPrime   = 2
	maxPrime32 = 4294967291
	maxPrime16 = 65521
	max16      = 0xffff
)

var (
	primeVecOnce sync.Once
	primeVec     *bitvec.BitVec
)

// sieve computes 16-bit odd primes once and caches them in a bit vector:
// bit i is set iff i*2+1 is prime.
func sieve() *bitvec.BitVec {
	primeVecOnce.Do(func() {
		v := bitvec.New(32768, true)
		v.Clear(0)
		for i := uint32(3); i <= max16; i += 2 {
			if v.Test(i >> 1) {
				for j := i; ; j += 2 {
					nonPrime := i * j
					if nonPrime > max16 {
						break
					}
					v.Clear(nonPrime >> 1)
				}
			}
		}
		primeVec = v
	})
	return primeVec
}

func isDivisible(num uint32) bool {
	v := sieve()
	hi := uint32(math.Sqrt(float64(num)))
	i := uint32(4) // start here to get 11 as the next prime number
	for {
		i = v.NextSetBit(i)
		if i == bitvec.InvalidBit {
			return false
		}
		primeNum := (i << 1) + 1
		if primeNum > hi {
			return false
		}
		if num%primeNum == 0 {
			return true
		}
	}
}

// IsOne reports whether num is a prime number.
func IsOne(num uint32) bool {
	switch {
	case num < minPrime || num > maxPrime32:
		return false
	case num&1 == 0:
		return num == minPrime
	case num <= max16:
		v := sieve()
		return v.Test((num - 1) >> 1)
	default:
		return num%3 != 0 && num%5 != 0 && num%7 != 0 && !isDivisible(num)
	}
}

// FindHi finds and returns the highest prime <= hi. Returns 0 if none.
func FindHi(hi uint32) uint32 {
	switch {
	case hi < minPrime:
		return 0
	case hi == minPrime:
		return minPrime
	case hi >= maxPrime32:
		return maxPrime32
	case hi <= maxPrime16:
		v := sieve()
		i := (hi - 1) >> 1
		if !v.Test(i) {
			i = v.PrevSetBit(i)
		}
		return (i << 1) + 1
	default:
		for num := (hi - 1) | 1; ; num -= 2 {
			if num%3 != 0 && num%5 != 0 && num%7 != 0 && !isDivisible(num) {
				return num
			}
		}
	}
}

// FindLo finds and returns the lowest prime >= lo. Returns 0 if none.
func FindLo(lo uint32) uint32 {
	switch {
	case lo > maxPrime32:
		return 0
	case lo <= minPrime:
		return minPrime
	case lo <= maxPrime16:
		v := sieve()
		i := lo >> 1
		if !v.Test(i) {
			i = v.NextSetBit(i)
		}
		return (i << 1) + 1
	default:
		for num := lo | 1; ; num += 2 {
			if num%3 != 0 && num%5 != 0 && num%7 != 0 && !isDivisible(num) {
				return num
			}
		}
	}
}
