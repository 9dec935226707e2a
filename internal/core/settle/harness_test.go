package settle

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/marinerlabs/goseaport/internal/core/order"
)

// memStore is an in-memory StatusStore for engine tests.
type memStore struct {
	statuses map[common.Hash]order.Status
	counters map[common.Address]*big.Int
	nonces   map[common.Address]*big.Int
	applies  int
}

func newMemStore() *memStore {
	return &memStore{
		statuses: make(map[common.Hash]order.Status),
		counters: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]*big.Int),
	}
}

func (m *memStore) OrderStatus(hash common.Hash) (order.Status, error) {
	return m.statuses[hash], nil
}

func (m *memStore) Counter(offerer common.Address) (*big.Int, error) {
	if c, ok := m.counters[offerer]; ok {
		return new(big.Int).Set(c), nil
	}
	return new(big.Int), nil
}

func (m *memStore) IncrementCounter(offerer common.Address) (*big.Int, error) {
	c, _ := m.Counter(offerer)
	c.Add(c, big.NewInt(1))
	m.counters[offerer] = c
	return new(big.Int).Set(c), nil
}

func (m *memStore) ContractNonce(offerer common.Address) (*big.Int, error) {
	if n, ok := m.nonces[offerer]; ok {
		return new(big.Int).Set(n), nil
	}
	return new(big.Int), nil
}

func (m *memStore) Apply(changes StateChanges) error {
	m.applies++
	for hash, status := range changes.Statuses {
		m.statuses[hash] = status
	}
	for addr, nonce := range changes.ContractNonces {
		m.nonces[addr] = new(big.Int).Set(nonce)
	}
	return nil
}

type transferRecord struct {
	item    order.ReceivedItem
	from    common.Address
	conduit common.Hash
}

// recordingExecutor collects transfers; failOn lets a test inject a failure.
type recordingExecutor struct {
	transfers []transferRecord
	failOn    func(item order.ReceivedItem, from common.Address) error
}

func (r *recordingExecutor) Transfer(_ context.Context, item order.ReceivedItem, from common.Address, conduitKey common.Hash) error {
	if r.failOn != nil {
		if err := r.failOn(item, from); err != nil {
			return err
		}
	}
	r.transfers = append(r.transfers, transferRecord{item: item, from: from, conduit: conduitKey})
	return nil
}

// testZone echoes configurable magic values from its callbacks.
type testZone struct {
	authorizeMagic [4]byte
	validateMagic  [4]byte
	authorizeErr   error
	validateErr    error
	authorized     []common.Hash
	validated      []common.Hash
}

func newTestZone() *testZone {
	return &testZone{authorizeMagic: MagicAuthorizeOrder, validateMagic: MagicValidateOrder}
}

func (z *testZone) AuthorizeOrder(_ context.Context, zp ZoneParameters) ([4]byte, error) {
	z.authorized = append(z.authorized, zp.OrderHash)
	return z.authorizeMagic, z.authorizeErr
}

func (z *testZone) ValidateOrder(_ context.Context, zp ZoneParameters) ([4]byte, error) {
	z.validated = append(z.validated, zp.OrderHash)
	return z.validateMagic, z.validateErr
}

// testOfferer returns fixed generated items from GenerateOrder.
type testOfferer struct {
	offer         []order.SpentItem
	consideration []order.ReceivedItem
	generateErr   error
	ratifyMagic   [4]byte
	ratifyErr     error
	ratifiedNonce *big.Int
}

func newTestOfferer(offer []order.SpentItem, consideration []order.ReceivedItem) *testOfferer {
	return &testOfferer{offer: offer, consideration: consideration, ratifyMagic: MagicRatifyOrder}
}

func (o *testOfferer) GenerateOrder(_ context.Context, _ common.Address, _, _ []order.SpentItem, _ []byte) ([]order.SpentItem, []order.ReceivedItem, error) {
	if o.generateErr != nil {
		return nil, nil, o.generateErr
	}
	return o.offer, o.consideration, nil
}

func (o *testOfferer) RatifyOrder(_ context.Context, _ []order.SpentItem, _ []order.ReceivedItem, _ []byte, _ []common.Hash, nonce *big.Int) ([4]byte, error) {
	o.ratifiedNonce = nonce
	return o.ratifyMagic, o.ratifyErr
}

// mapRegistry resolves zones and contract offerers from fixed maps.
type mapRegistry struct {
	zones    map[common.Address]Zone
	offerers map[common.Address]ContractOfferer
}

func newMapRegistry() *mapRegistry {
	return &mapRegistry{
		zones:    make(map[common.Address]Zone),
		offerers: make(map[common.Address]ContractOfferer),
	}
}

func (r *mapRegistry) Zone(addr common.Address) (Zone, bool) {
	z, ok := r.zones[addr]
	return z, ok
}

func (r *mapRegistry) ContractOfferer(addr common.Address) (ContractOfferer, bool) {
	o, ok := r.offerers[addr]
	return o, ok
}

type account struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err, "generating test key")
	return account{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
}

var (
	testChainID  = big.NewInt(31337)
	testContract = common.HexToAddress("0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC")
	testNow      = big.NewInt(1_700_000_000)
)

// testEnv bundles a fresh engine with its collaborators.
type testEnv struct {
	engine   *Engine
	store    *memStore
	executor *recordingExecutor
	registry *mapRegistry
	hasher   *order.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	executor := &recordingExecutor{}
	registry := newMapRegistry()
	hasher := order.NewHasher(testChainID, testContract)
	engine := NewEngine(store, hasher, executor, Options{
		Registry: registry,
		Now:      func() *big.Int { return new(big.Int).Set(testNow) },
	})
	return &testEnv{engine: engine, store: store, executor: executor, registry: registry, hasher: hasher}
}

// signOrder signs the parameters against the offerer's current counter.
func (env *testEnv) signOrder(t *testing.T, acct account, p order.Parameters) []byte {
	t.Helper()
	counter, err := env.store.Counter(p.Offerer)
	require.NoError(t, err, "reading counter")
	hash := env.hasher.OrderHash(p.ToComponents(counter))
	digest := env.hasher.Digest(hash)
	sig, err := crypto.Sign(digest.Bytes(), acct.key)
	require.NoError(t, err, "signing digest")
	return sig
}

// simpleSwap builds an open order offering 100 units of an ERC20 token for a
// single ERC721 identifier, valid around testNow.
func simpleSwap(offerer account, payee common.Address) order.Parameters {
	return order.Parameters{
		Offerer: offerer.addr,
		Offer: []order.OfferItem{{
			ItemType:             order.ERC20,
			Token:                common.HexToAddress("0x20"),
			IdentifierOrCriteria: new(big.Int),
			StartAmount:          big.NewInt(100),
			EndAmount:            big.NewInt(100),
		}},
		Consideration: []order.ConsiderationItem{{
			ItemType:             order.ERC721,
			Token:                common.HexToAddress("0x721"),
			IdentifierOrCriteria: big.NewInt(42),
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
			Recipient:            payee,
		}},
		OrderType:                       order.FullOpen,
		StartTime:                       new(big.Int).Sub(testNow, big.NewInt(100)),
		EndTime:                         new(big.Int).Add(testNow, big.NewInt(100)),
		Salt:                            big.NewInt(1),
		TotalOriginalConsiderationItems: 1,
	}
}

// advanced wraps parameters and a signature into a num/den advanced order.
func advanced(p order.Parameters, sig []byte, num, den int64) order.AdvancedOrder {
	return order.AdvancedOrder{
		Parameters:  p,
		Numerator:   big.NewInt(num),
		Denominator: big.NewInt(den),
		Signature:   sig,
	}
}
