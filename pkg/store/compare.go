package store

import (
	"bytes"
	"strings"

	"golang.org/x/exp/constraints"
)

type LessFunc[K any] func(k1, k2 K) bool

type CompareFuncG[K any] func(lhs, rhs K) int

func IntegerCompare[K constraints.Integer](l, r K) int {
	if l < r {
		return -1
	} else if l == r {
		return 0
	} else {
		return 1
	}
}

func IntegerLess[K constraints.Integer](a, b K) bool {
	return a < b
}

func StringCompare(lhs, rhs string) int {
	return strings.Compare(lhs, rhs)
}

func StringLess(a, b string) bool {
	return strings.Compare(a, b) < 0
}

func BytesCompare(lhs, rhs []byte) int {
	return bytes.Compare(lhs, rhs)
}

func BytesLess(a, b []byte) bool {
	return bytes.Compare(a, b) < 0
}

func LessFromCompare[K any](cmp CompareFuncG[K]) LessFunc[K] {
	return func(k1, k2 K) bool {
		return cmp(k1, k2) < 0
	}
}
