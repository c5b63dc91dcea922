// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import "encoding/binary"

// Hash types for the hash function
const (
	hashTypeTableOffset = 0
	hashTypeNameA       = 1
	hashTypeNameB       = 2
	hashTypeFileKey     = 3
)

// cryptTable is the encryption/hash lookup table
var cryptTable [0x500]uint32

// indexKey encrypts the entry index of containers with FlagEncryptedIndex
var indexKey uint32

func init() {
	seed := uint32(0x00100001)

	for index1 := 0; index1 < 0x100; index1++ {
		index2 := index1
		for i := 0; i < 5; i++ {
			seed = (seed*125 + 3) % 0x2AAAAB
			temp1 := (seed & 0xFFFF) << 0x10

			seed = (seed*125 + 3) % 0x2AAAAB
			temp2 := seed & 0xFFFF

			cryptTable[index2] = temp1 | temp2
			index2 += 0x100
		}
	}

	indexKey = hashString("(entry index)", hashTypeFileKey)
}

// hashString hashes s case-insensitively, treating '/' and '\' alike
func hashString(s string, hashType uint32) uint32 {
	seed1 := uint32(0x7FED7FED)
	seed2 := uint32(0xEEEEEEEE)

	for i := 0; i < len(s); i++ {
		ch := uint32(s[i])
		if ch >= 'a' && ch <= 'z' {
			ch -= 0x20
		}
		if ch == '/' {
			ch = '\\'
		}

		seed1 = cryptTable[hashType*0x100+ch] ^ (seed1 + seed2)
		seed2 = ch + seed1 + seed2 + (seed2 << 5) + 3
	}

	return seed1
}

// cipher is the keystream state shared by encryption and decryption
type cipher struct {
	key  uint32
	seed uint32
}

func newCipher(key uint32) cipher {
	return cipher{key: key, seed: 0xEEEEEEEE}
}

// mask returns the next keystream word
func (c *cipher) mask() uint32 {
	c.seed += cryptTable[0x400+(c.key&0xFF)]
	return c.key + c.seed
}

// advance feeds the plaintext word back into the state
func (c *cipher) advance(plain uint32) {
	c.key = ((^c.key << 0x15) + 0x11111111) | (c.key >> 0x0B)
	c.seed = plain + c.seed + (c.seed << 5) + 3
}

// encryptBytes encrypts data in place. Whole words are chained through the
// plaintext; a trailing partial word is XORed with the next keystream word,
// so the length is preserved.
func encryptBytes(data []byte, key uint32) {
	c := newCipher(key)
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		plain := binary.LittleEndian.Uint32(data[i:])
		binary.LittleEndian.PutUint32(data[i:], plain^c.mask())
		c.advance(plain)
	}
	c.xorTail(data[n:])
}

// decryptBytes reverses encryptBytes in place
func decryptBytes(data []byte, key uint32) {
	c := newCipher(key)
	n := len(data) &^ 3
	for i := 0; i < n; i += 4 {
		plain := binary.LittleEndian.Uint32(data[i:]) ^ c.mask()
		binary.LittleEndian.PutUint32(data[i:], plain)
		c.advance(plain)
	}
	c.xorTail(data[n:])
}

func (c *cipher) xorTail(tail []byte) {
	if len(tail) == 0 {
		return
	}
	var m [4]byte
	binary.LittleEndian.PutUint32(m[:], c.mask())
	for i := range tail {
		tail[i] ^= m[i]
	}
}

// dataKey computes the payload key of an entry from its base name and
// stored size
func dataKey(path string, storedSize uint32) uint32 {
	plainName := path
	if idx := lastIndexOfSlash(path); idx >= 0 {
		plainName = path[idx+1:]
	}
	return hashString(plainName, hashTypeFileKey) ^ storedSize
}

// lastIndexOfSlash finds the last path separator in a string
func lastIndexOfSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\\' || s[i] == '/' {
			return i
		}
	}
	return -1
}
