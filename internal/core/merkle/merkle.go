// Package merkle implements the sorted-pair keccak256 Merkle tree used for
// criteria-based items: leaves are hashed token identifiers and every inner
// node hashes its children in ascending order, so proofs need no position
// information.
package merkle

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidProof is returned when a proof does not connect the leaf to
	// the expected root.
	ErrInvalidProof = errors.New("invalid criteria proof")

	// ErrNoLeaves is returned when building a tree from an empty identifier set.
	ErrNoLeaves = errors.New("cannot build tree with no leaves")
)

// Leaf hashes a token identifier into its leaf node value.
func Leaf(identifier *big.Int) common.Hash {
	return crypto.Keccak256Hash(common.BigToHash(identifier).Bytes())
}

// VerifyProof checks that identifier is included under root via the supplied
// proof path. Proof elements are folded leaf-to-root, hashing each pair in
// ascending byte order.
func VerifyProof(root common.Hash, identifier *big.Int, proof []common.Hash) error {
	computed := Leaf(identifier)
	for _, node := range proof {
		computed = hashPair(computed, node)
	}
	if computed != root {
		return ErrInvalidProof
	}
	return nil
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}

// Tree is a fully built sorted-pair Merkle tree over a set of identifiers.
type Tree struct {
	root   common.Hash
	leaves []common.Hash
	// levels[0] holds the leaves, the last level holds the root alone.
	levels [][]common.Hash
}

// NewTree builds a tree over the given identifiers. Odd nodes at any level
// are promoted unchanged to the next level.
func NewTree(identifiers []*big.Int) (*Tree, error) {
	if len(identifiers) == 0 {
		return nil, ErrNoLeaves
	}

	leaves := make([]common.Hash, len(identifiers))
	for i, id := range identifiers {
		leaves[i] = Leaf(id)
	}

	levels := [][]common.Hash{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([]common.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, hashPair(current[i], current[i+1]))
			} else {
				next = append(next, current[i])
			}
		}
		levels = append(levels, next)
		current = next
	}

	return &Tree{
		root:   current[0],
		leaves: leaves,
		levels: levels,
	}, nil
}

// Root returns the tree's root hash.
func (t *Tree) Root() common.Hash {
	return t.root
}

// RootBig returns the root as a big integer, the form stored in a criteria
// item's identifierOrCriteria field.
func (t *Tree) RootBig() *big.Int {
	return new(big.Int).SetBytes(t.root.Bytes())
}

// Proof returns the inclusion proof for the leaf at the given index.
func (t *Tree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, errors.New("leaf index out of range")
	}

	var proof []common.Hash
	pos := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		sibling := pos ^ 1
		if sibling < len(nodes) {
			proof = append(proof, nodes[sibling])
		}
		pos /= 2
	}
	return proof, nil
}
