// Package repotest provides an in-memory Store implementation for
// service-level tests. State is copied at transaction start and restored
// on error, giving the same all-or-nothing behavior as the SQL store.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories"
)

type state struct {
	accounts     map[uuid.UUID]*entities.LedgerAccount
	lines        []*entities.LedgerLine
	traders      map[uuid.UUID]*entities.Trader
	rels         map[uuid.UUID]*entities.CopyRelationship
	plans        map[uuid.UUID]*entities.Plan
	investments  map[uuid.UUID]*entities.LongTermInvestment
	transactions map[uuid.UUID]*entities.Transaction
	settlements  []*entities.SettlementEvent
}

func newState() *state {
	return &state{
		accounts:     make(map[uuid.UUID]*entities.LedgerAccount),
		traders:      make(map[uuid.UUID]*entities.Trader),
		rels:         make(map[uuid.UUID]*entities.CopyRelationship),
		plans:        make(map[uuid.UUID]*entities.Plan),
		investments:  make(map[uuid.UUID]*entities.LongTermInvestment),
		transactions: make(map[uuid.UUID]*entities.Transaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = cloneAccount(v)
	}
	c.lines = append(c.lines, s.lines...)
	for k, v := range s.traders {
		c.traders[k] = cloneTrader(v)
	}
	for k, v := range s.rels {
		c.rels[k] = cloneRel(v)
	}
	for k, v := range s.plans {
		c.plans[k] = clonePlan(v)
	}
	for k, v := range s.investments {
		c.investments[k] = cloneInvestment(v)
	}
	for k, v := range s.transactions {
		c.transactions[k] = cloneTransaction(v)
	}
	c.settlements = append(c.settlements, s.settlements...)
	return c
}

func cloneAccount(a *entities.LedgerAccount) *entities.LedgerAccount {
	cp := *a
	return &cp
}

func cloneTrader(t *entities.Trader) *entities.Trader {
	cp := *t
	return &cp
}

func cloneRel(r *entities.CopyRelationship) *entities.CopyRelationship {
	cp := *r
	if r.StoppedAt != nil {
		at := *r.StoppedAt
		cp.StoppedAt = &at
	}
	cp.Trader = nil
	return &cp
}

func clonePlan(p *entities.Plan) *entities.Plan {
	cp := *p
	if p.MaximumDeposit != nil {
		max := *p.MaximumDeposit
		cp.MaximumDeposit = &max
	}
	return &cp
}

func cloneInvestment(i *entities.LongTermInvestment) *entities.LongTermInvestment {
	cp := *i
	if i.StoppedAt != nil {
		at := *i.StoppedAt
		cp.StoppedAt = &at
	}
	cp.Plan = nil
	return &cp
}

func cloneTransaction(t *entities.Transaction) *entities.Transaction {
	cp := *t
	if t.WithdrawalSource != nil {
		src := *t.WithdrawalSource
		cp.WithdrawalSource = &src
	}
	if t.RelatedInvestmentID != nil {
		id := *t.RelatedInvestmentID
		cp.RelatedInvestmentID = &id
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}

// Store is the in-memory repositories.Store for tests
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithTx runs fn against a working copy of the store state. The copy
// replaces the live state only when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.st.clone()
	if err := fn(&unitOfWork{st: working}); err != nil {
		return err
	}
	s.st = working
	return nil
}

// Seed helpers run outside a transaction, for test setup.

// SeedAccount installs a ledger account with journal lines matching its pools
func (s *Store) SeedAccount(account *entities.LedgerAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.accounts[account.UserID] = cloneAccount(account)
	for _, p := range []entities.Pool{
		entities.PoolMain, entities.PoolCopyAllocated, entities.PoolCopyWallet,
		entities.PoolLongTermAllocated, entities.PoolLongTermWallet,
	} {
		if bal := account.Balance(p); !bal.IsZero() {
			s.st.lines = append(s.st.lines, entities.NewLedgerLine(account.UserID, p, bal, "seed", nil))
		}
	}
}

// SeedTrader installs a trader
func (s *Store) SeedTrader(t *entities.Trader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.traders[t.ID] = cloneTrader(t)
}

// SeedRelationship installs a copy relationship
func (s *Store) SeedRelationship(r *entities.CopyRelationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.rels[r.ID] = cloneRel(r)
}

// SeedPlan installs a plan
func (s *Store) SeedPlan(p *entities.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.plans[p.ID] = clonePlan(p)
}

// SeedInvestment installs a long-term investment
func (s *Store) SeedInvestment(i *entities.LongTermInvestment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.investments[i.ID] = cloneInvestment(i)
}

// Account returns a copy of a seeded/committed account for assertions
func (s *Store) Account(userID uuid.UUID) *entities.LedgerAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.st.accounts[userID]; ok {
		return cloneAccount(a)
	}
	return nil
}

// Relationship returns a copy of a committed relationship for assertions
func (s *Store) Relationship(id uuid.UUID) *entities.CopyRelationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.st.rels[id]; ok {
		return cloneRel(r)
	}
	return nil
}

// Investment returns a copy of a committed investment for assertions
func (s *Store) Investment(id uuid.UUID) *entities.LongTermInvestment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.st.investments[id]; ok {
		return cloneInvestment(i)
	}
	return nil
}

// Transaction returns a copy of a committed transaction for assertions
func (s *Store) Transaction(id uuid.UUID) *entities.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.st.transactions[id]; ok {
		return cloneTransaction(t)
	}
	return nil
}

// Trader returns a copy of a committed trader for assertions
func (s *Store) Trader(id uuid.UUID) *entities.Trader {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.st.traders[id]; ok {
		return cloneTrader(t)
	}
	return nil
}

// LineSum returns the signed sum of all journal lines for a user
func (s *Store) LineSum(userID uuid.UUID) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, l := range s.st.lines {
		if l.UserID == userID {
			sum = sum.Add(l.Amount)
		}
	}
	return sum
}

// Settlements returns all committed settlement events for a user
func (s *Store) Settlements(userID uuid.UUID) []*entities.SettlementEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.SettlementEvent
	for _, e := range s.st.settlements {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

type unitOfWork struct {
	st *state
}

func (u *unitOfWork) Ledger() repositories.LedgerRepository { return &ledgerRepo{st: u.st} }
func (u *unitOfWork) Traders() repositories.TraderRepository {
	return &traderRepo{st: u.st}
}
func (u *unitOfWork) CopyRelationships() repositories.CopyRelationshipRepository {
	return &relRepo{st: u.st}
}
func (u *unitOfWork) Plans() repositories.PlanRepository { return &planRepo{st: u.st} }
func (u *unitOfWork) Investments() repositories.InvestmentRepository {
	return &investmentRepo{st: u.st}
}
func (u *unitOfWork) Transactions() repositories.TransactionRepository {
	return &transactionRepo{st: u.st}
}
func (u *unitOfWork) Settlements() repositories.SettlementRepository {
	return &settlementRepo{st: u.st}
}

type ledgerRepo struct{ st *state }

func (r *ledgerRepo) CreateAccount(ctx context.Context, account *entities.LedgerAccount) error {
	if _, ok := r.st.accounts[account.UserID]; ok {
		return domainerrors.ErrDuplicateResource
	}
	r.st.accounts[account.UserID] = cloneAccount(account)
	return nil
}

func (r *ledgerRepo) GetAccount(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error) {
	a, ok := r.st.accounts[userID]
	if !ok {
		return nil, domainerrors.NewNotFoundError("ledger account")
	}
	return cloneAccount(a), nil
}

func (r *ledgerRepo) GetAccountForUpdate(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error) {
	return r.GetAccount(ctx, userID)
}

func (r *ledgerRepo) UpdateAccount(ctx context.Context, account *entities.LedgerAccount) error {
	if _, ok := r.st.accounts[account.UserID]; !ok {
		return domainerrors.NewNotFoundError("ledger account")
	}
	r.st.accounts[account.UserID] = cloneAccount(account)
	return nil
}

func (r *ledgerRepo) AppendLine(ctx context.Context, line *entities.LedgerLine) error {
	cp := *line
	r.st.lines = append(r.st.lines, &cp)
	return nil
}

func (r *ledgerRepo) ListLines(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerLine, error) {
	var all []*entities.LedgerLine
	for _, l := range r.st.lines {
		if l.UserID == userID {
			cp := *l
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

func (r *ledgerRepo) SumLines(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, l := range r.st.lines {
		if l.UserID == userID {
			sum = sum.Add(l.Amount)
		}
	}
	return sum, nil
}

type traderRepo struct{ st *state }

func (r *traderRepo) Create(ctx context.Context, trader *entities.Trader) error {
	if _, ok := r.st.traders[trader.ID]; ok {
		return domainerrors.ErrDuplicateResource
	}
	r.st.traders[trader.ID] = cloneTrader(trader)
	return nil
}

func (r *traderRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Trader, error) {
	t, ok := r.st.traders[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("trader")
	}
	return cloneTrader(t), nil
}

func (r *traderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Trader, error) {
	return r.GetByID(ctx, id)
}

func (r *traderRepo) List(ctx context.Context, status entities.TraderStatus, limit, offset int) ([]*entities.Trader, error) {
	var all []*entities.Trader
	for _, t := range r.st.traders {
		if status == "" || t.Status == status {
			all = append(all, cloneTrader(t))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, limit, offset), nil
}

func (r *traderRepo) AdjustCounters(ctx context.Context, id uuid.UUID, copierDelta int, aumDelta decimal.Decimal) error {
	t, ok := r.st.traders[id]
	if !ok {
		return domainerrors.NewNotFoundError("trader")
	}
	t.CopierCount += copierDelta
	t.AUM = entities.Round2(t.AUM.Add(aumDelta))
	t.UpdatedAt = time.Now().UTC()
	return nil
}

type relRepo struct{ st *state }

func (r *relRepo) Create(ctx context.Context, rel *entities.CopyRelationship) error {
	if _, ok := r.st.rels[rel.ID]; ok {
		return domainerrors.ErrDuplicateResource
	}
	r.st.rels[rel.ID] = cloneRel(rel)
	return nil
}

func (r *relRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.CopyRelationship, error) {
	rel, ok := r.st.rels[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("copy relationship")
	}
	out := cloneRel(rel)
	if t, ok := r.st.traders[rel.TraderID]; ok {
		out.Trader = cloneTrader(t)
	}
	return out, nil
}

func (r *relRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CopyRelationship, error) {
	return r.GetByID(ctx, id)
}

func (r *relRepo) GetActiveByUserAndTrader(ctx context.Context, userID, traderID uuid.UUID) (*entities.CopyRelationship, error) {
	for _, rel := range r.st.rels {
		if rel.UserID == userID && rel.TraderID == traderID && !rel.IsTerminal() {
			return cloneRel(rel), nil
		}
	}
	return nil, nil
}

func (r *relRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.CopyRelationship, error) {
	var out []*entities.CopyRelationship
	for _, rel := range r.st.rels {
		if rel.UserID == userID {
			cp := cloneRel(rel)
			if t, ok := r.st.traders[rel.TraderID]; ok {
				cp.Trader = cloneTrader(t)
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *relRepo) ListFollowersForUpdate(ctx context.Context, traderID uuid.UUID, statuses []entities.CopyStatus) ([]*entities.CopyRelationship, error) {
	match := make(map[entities.CopyStatus]bool, len(statuses))
	for _, s := range statuses {
		match[s] = true
	}
	var out []*entities.CopyRelationship
	for _, rel := range r.st.rels {
		if rel.TraderID == traderID && (len(statuses) == 0 || match[rel.Status]) {
			out = append(out, cloneRel(rel))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *relRepo) Update(ctx context.Context, rel *entities.CopyRelationship) error {
	if _, ok := r.st.rels[rel.ID]; !ok {
		return domainerrors.NewNotFoundError("copy relationship")
	}
	r.st.rels[rel.ID] = cloneRel(rel)
	return nil
}

type planRepo struct{ st *state }

func (r *planRepo) Create(ctx context.Context, plan *entities.Plan) error {
	if _, ok := r.st.plans[plan.ID]; ok {
		return domainerrors.ErrDuplicateResource
	}
	r.st.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (r *planRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Plan, error) {
	p, ok := r.st.plans[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("plan")
	}
	return clonePlan(p), nil
}

func (r *planRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Plan, error) {
	return r.GetByID(ctx, id)
}

func (r *planRepo) List(ctx context.Context, limit, offset int) ([]*entities.Plan, error) {
	var out []*entities.Plan
	for _, p := range r.st.plans {
		out = append(out, clonePlan(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *planRepo) SumActiveAllocations(ctx context.Context, planID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, inv := range r.st.investments {
		if inv.PlanID == planID && inv.Status == entities.InvestmentStatusActive {
			sum = sum.Add(inv.Allocation)
		}
	}
	return sum, nil
}

type investmentRepo struct{ st *state }

func (r *investmentRepo) Create(ctx context.Context, inv *entities.LongTermInvestment) error {
	if _, ok := r.st.investments[inv.ID]; ok {
		return domainerrors.ErrDuplicateResource
	}
	r.st.investments[inv.ID] = cloneInvestment(inv)
	return nil
}

func (r *investmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.LongTermInvestment, error) {
	inv, ok := r.st.investments[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("investment")
	}
	out := cloneInvestment(inv)
	if p, ok := r.st.plans[inv.PlanID]; ok {
		out.Plan = clonePlan(p)
	}
	return out, nil
}

func (r *investmentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.LongTermInvestment, error) {
	return r.GetByID(ctx, id)
}

func (r *investmentRepo) GetActiveByUserAndPlan(ctx context.Context, userID, planID uuid.UUID) (*entities.LongTermInvestment, error) {
	for _, inv := range r.st.investments {
		if inv.UserID == userID && inv.PlanID == planID && inv.Status == entities.InvestmentStatusActive {
			return cloneInvestment(inv), nil
		}
	}
	return nil, nil
}

func (r *investmentRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.LongTermInvestment, error) {
	var out []*entities.LongTermInvestment
	for _, inv := range r.st.investments {
		if inv.UserID == userID {
			cp := cloneInvestment(inv)
			if p, ok := r.st.plans[inv.PlanID]; ok {
				cp.Plan = clonePlan(p)
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *investmentRepo) ListActiveByPlanForUpdate(ctx context.Context, planID uuid.UUID) ([]*entities.LongTermInvestment, error) {
	var out []*entities.LongTermInvestment
	for _, inv := range r.st.investments {
		if inv.PlanID == planID && inv.Status == entities.InvestmentStatusActive {
			out = append(out, cloneInvestment(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *investmentRepo) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*entities.LongTermInvestment, error) {
	var out []*entities.LongTermInvestment
	for _, inv := range r.st.investments {
		if inv.Status == entities.InvestmentStatusActive && inv.IsDue(asOf) {
			out = append(out, cloneInvestment(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *investmentRepo) Update(ctx context.Context, inv *entities.LongTermInvestment) error {
	if _, ok := r.st.investments[inv.ID]; !ok {
		return domainerrors.NewNotFoundError("investment")
	}
	r.st.investments[inv.ID] = cloneInvestment(inv)
	return nil
}

type transactionRepo struct{ st *state }

func (r *transactionRepo) Create(ctx context.Context, tx *entities.Transaction) error {
	if _, ok := r.st.transactions[tx.ID]; ok {
		return domainerrors.ErrDuplicateResource
	}
	r.st.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	tx, ok := r.st.transactions[id]
	if !ok {
		return nil, domainerrors.NewNotFoundError("transaction")
	}
	return cloneTransaction(tx), nil
}

func (r *transactionRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	var out []*entities.Transaction
	for _, tx := range r.st.transactions {
		if tx.UserID == userID {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *transactionRepo) ListByStatus(ctx context.Context, status entities.TransactionStatus, limit, offset int) ([]*entities.Transaction, error) {
	var out []*entities.Transaction
	for _, tx := range r.st.transactions {
		if tx.Status == status {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (r *transactionRepo) HasPendingForInvestment(ctx context.Context, investmentID uuid.UUID) (bool, error) {
	for _, tx := range r.st.transactions {
		if tx.RelatedInvestmentID != nil && *tx.RelatedInvestmentID == investmentID &&
			tx.Status == entities.TransactionStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *transactionRepo) Update(ctx context.Context, tx *entities.Transaction) error {
	if _, ok := r.st.transactions[tx.ID]; !ok {
		return domainerrors.NewNotFoundError("transaction")
	}
	r.st.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

type settlementRepo struct{ st *state }

func (r *settlementRepo) Create(ctx context.Context, event *entities.SettlementEvent) error {
	cp := *event
	r.st.settlements = append(r.st.settlements, &cp)
	return nil
}

func (r *settlementRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.SettlementEvent, error) {
	var out []*entities.SettlementEvent
	for _, e := range r.st.settlements {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return in
}
