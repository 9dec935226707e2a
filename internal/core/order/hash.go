package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 domain constants.
const (
	EIP712DomainName    = "Seaport"
	EIP712DomainVersion = "1.6"
)

// Pre-computed EIP-712 type hashes.
var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	offerItemTypeString = "OfferItem(uint8 itemType,address token,uint256 identifierOrCriteria," +
		"uint256 startAmount,uint256 endAmount)"

	considerationItemTypeString = "ConsiderationItem(uint8 itemType,address token," +
		"uint256 identifierOrCriteria,uint256 startAmount,uint256 endAmount,address recipient)"

	orderComponentsPartialTypeString = "OrderComponents(address offerer,address zone," +
		"OfferItem[] offer,ConsiderationItem[] consideration,uint8 orderType," +
		"uint256 startTime,uint256 endTime,bytes32 zoneHash,uint256 salt," +
		"bytes32 conduitKey,uint256 counter)"

	offerItemTypeHash         = crypto.Keccak256Hash([]byte(offerItemTypeString))
	considerationItemTypeHash = crypto.Keccak256Hash([]byte(considerationItemTypeString))

	// Nested struct type strings are appended in alphabetical order per EIP-712.
	orderComponentsTypeHash = crypto.Keccak256Hash([]byte(
		orderComponentsPartialTypeString + considerationItemTypeString + offerItemTypeString,
	))
)

// Hasher derives deterministic EIP-712 order hashes and signing digests for
// a fixed (chainId, verifyingContract) domain.
type Hasher struct {
	chainID           *big.Int
	verifyingContract common.Address
	domainSeparator   common.Hash
}

// NewHasher creates a Hasher for the given domain and pre-computes the
// domain separator.
func NewHasher(chainID *big.Int, verifyingContract common.Address) *Hasher {
	h := &Hasher{
		chainID:           new(big.Int).Set(chainID),
		verifyingContract: verifyingContract,
	}
	h.domainSeparator = h.computeDomainSeparator()
	return h
}

// DomainSeparator returns the EIP-712 domain separator hash.
func (h *Hasher) DomainSeparator() common.Hash {
	return h.domainSeparator
}

func (h *Hasher) computeDomainSeparator() common.Hash {
	nameHash := crypto.Keccak256Hash([]byte(EIP712DomainName))
	versionHash := crypto.Keccak256Hash([]byte(EIP712DomainVersion))

	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	arguments := abi.Arguments{
		{Type: bytes32Type}, // typeHash
		{Type: bytes32Type}, // nameHash
		{Type: bytes32Type}, // versionHash
		{Type: uint256Type}, // chainId
		{Type: addressType}, // verifyingContract
	}

	encoded, err := arguments.Pack(
		eip712DomainTypeHash,
		nameHash,
		versionHash,
		h.chainID,
		h.verifyingContract,
	)
	if err != nil {
		panic("failed to encode domain separator: " + err.Error())
	}

	return crypto.Keccak256Hash(encoded)
}

// OrderHash computes the EIP-712 struct hash of the order components.
func (h *Hasher) OrderHash(c Components) common.Hash {
	p := c.Parameters

	offerHashes := make([]byte, 0, len(p.Offer)*common.HashLength)
	for i := range p.Offer {
		hash := hashOfferItem(&p.Offer[i])
		offerHashes = append(offerHashes, hash.Bytes()...)
	}

	considerationHashes := make([]byte, 0, len(p.Consideration)*common.HashLength)
	for i := range p.Consideration {
		hash := hashConsiderationItem(&p.Consideration[i])
		considerationHashes = append(considerationHashes, hash.Bytes()...)
	}

	enc := make([]byte, 0, 12*common.HashLength)
	enc = append(enc, orderComponentsTypeHash.Bytes()...)
	enc = append(enc, addressWord(p.Offerer)...)
	enc = append(enc, addressWord(p.Zone)...)
	enc = append(enc, crypto.Keccak256(offerHashes)...)
	enc = append(enc, crypto.Keccak256(considerationHashes)...)
	enc = append(enc, uint8Word(uint8(p.OrderType))...)
	enc = append(enc, bigWord(p.StartTime)...)
	enc = append(enc, bigWord(p.EndTime)...)
	enc = append(enc, p.ZoneHash.Bytes()...)
	enc = append(enc, bigWord(p.Salt)...)
	enc = append(enc, p.ConduitKey.Bytes()...)
	enc = append(enc, bigWord(c.Counter)...)

	return crypto.Keccak256Hash(enc)
}

// Digest returns the final signing digest for an order hash:
// keccak256(0x19 0x01 ‖ domainSeparator ‖ orderHash).
func (h *Hasher) Digest(orderHash common.Hash) common.Hash {
	enc := make([]byte, 0, 2+2*common.HashLength)
	enc = append(enc, 0x19, 0x01)
	enc = append(enc, h.domainSeparator.Bytes()...)
	enc = append(enc, orderHash.Bytes()...)
	return crypto.Keccak256Hash(enc)
}

func hashOfferItem(item *OfferItem) common.Hash {
	enc := make([]byte, 0, 6*common.HashLength)
	enc = append(enc, offerItemTypeHash.Bytes()...)
	enc = append(enc, uint8Word(uint8(item.ItemType))...)
	enc = append(enc, addressWord(item.Token)...)
	enc = append(enc, bigWord(item.IdentifierOrCriteria)...)
	enc = append(enc, bigWord(item.StartAmount)...)
	enc = append(enc, bigWord(item.EndAmount)...)
	return crypto.Keccak256Hash(enc)
}

func hashConsiderationItem(item *ConsiderationItem) common.Hash {
	enc := make([]byte, 0, 7*common.HashLength)
	enc = append(enc, considerationItemTypeHash.Bytes()...)
	enc = append(enc, uint8Word(uint8(item.ItemType))...)
	enc = append(enc, addressWord(item.Token)...)
	enc = append(enc, bigWord(item.IdentifierOrCriteria)...)
	enc = append(enc, bigWord(item.StartAmount)...)
	enc = append(enc, bigWord(item.EndAmount)...)
	enc = append(enc, addressWord(item.Recipient)...)
	return crypto.Keccak256Hash(enc)
}

func addressWord(a common.Address) []byte {
	return common.LeftPadBytes(a.Bytes(), common.HashLength)
}

func uint8Word(v uint8) []byte {
	word := make([]byte, common.HashLength)
	word[common.HashLength-1] = v
	return word
}

func bigWord(v *big.Int) []byte {
	if v == nil {
		return make([]byte, common.HashLength)
	}
	return common.BigToHash(v).Bytes()
}
