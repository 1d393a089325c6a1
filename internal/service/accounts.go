package service

import (
	"context"
	"fmt"
	"strings"

	"tezgah/backend/internal/domain"
	"tezgah/backend/internal/store"
	"tezgah/backend/internal/xid"
)

func (s *Service) ListAccounts(ctx context.Context, typ domain.AccountType) ([]domain.Account, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if typ != "" && !typ.Valid() {
		return nil, invalid("unknown account type %q", typ)
	}
	return s.repo.ListAccounts(ctx, actor.UserID, typ)
}

func (s *Service) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Account{}, err
	}
	account, err := s.repo.GetAccount(ctx, actor.UserID, id)
	if err != nil {
		return domain.Account{}, err
	}
	return *account, nil
}

func (s *Service) CreateAccount(ctx context.Context, req domain.AccountRequest) (domain.Account, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := accountFromRequest(req)
	if err != nil {
		return domain.Account{}, err
	}
	now := s.now()
	account.ID = xid.New("acc")
	account.UserID = actor.UserID
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateAccount(ctx, account)
	}); err != nil {
		return domain.Account{}, err
	}

	s.logAudit(ctx, "account_create", "account", account.ID, fmt.Sprintf("name=%s,type=%s", account.Name, account.Type))
	return account, nil
}

// UpdateAccount overwrites every editable field, balance included.
func (s *Service) UpdateAccount(ctx context.Context, id string, req domain.AccountRequest) (domain.Account, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Account{}, err
	}

	patch, err := accountFromRequest(req)
	if err != nil {
		return domain.Account{}, err
	}
	existing, err := s.repo.GetAccount(ctx, actor.UserID, id)
	if err != nil {
		return domain.Account{}, err
	}

	updated := *existing
	updated.Name = patch.Name
	updated.Type = patch.Type
	updated.Phone = patch.Phone
	updated.Email = patch.Email
	updated.Balance = patch.Balance
	updated.Currency = patch.Currency
	updated.UpdatedAt = s.now()

	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateAccount(ctx, updated)
	}); err != nil {
		return domain.Account{}, err
	}

	s.logAudit(ctx, "account_update", "account", id, fmt.Sprintf("balance=%s,currency=%s", updated.Balance.StringFixed(2), updated.Currency))
	return updated, nil
}

func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteAccount(ctx, actor.UserID, id)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "account_delete", "account", id, "")
	return nil
}

func (s *Service) ListBankAccounts(ctx context.Context) ([]domain.BankAccount, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBankAccounts(ctx, actor.UserID)
}

func (s *Service) GetBankAccount(ctx context.Context, id string) (domain.BankAccount, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.BankAccount{}, err
	}
	account, err := s.repo.GetBankAccount(ctx, actor.UserID, id)
	if err != nil {
		return domain.BankAccount{}, err
	}
	return *account, nil
}

func (s *Service) CreateBankAccount(ctx context.Context, req domain.BankAccountRequest) (domain.BankAccount, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.BankAccount{}, err
	}

	account, err := bankAccountFromRequest(req)
	if err != nil {
		return domain.BankAccount{}, err
	}
	now := s.now()
	account.ID = xid.New("bank")
	account.UserID = actor.UserID
	account.CreatedAt = now
	account.UpdatedAt = now

	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateBankAccount(ctx, account)
	}); err != nil {
		return domain.BankAccount{}, err
	}

	s.logAudit(ctx, "bank_account_create", "bank_account", account.ID, fmt.Sprintf("name=%s,bank=%s", account.Name, account.BankName))
	return account, nil
}

func (s *Service) UpdateBankAccount(ctx context.Context, id string, req domain.BankAccountRequest) (domain.BankAccount, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.BankAccount{}, err
	}

	patch, err := bankAccountFromRequest(req)
	if err != nil {
		return domain.BankAccount{}, err
	}
	existing, err := s.repo.GetBankAccount(ctx, actor.UserID, id)
	if err != nil {
		return domain.BankAccount{}, err
	}

	updated := *existing
	updated.Name = patch.Name
	updated.BankName = patch.BankName
	updated.IBAN = patch.IBAN
	updated.Balance = patch.Balance
	updated.Currency = patch.Currency
	updated.UpdatedAt = s.now()

	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateBankAccount(ctx, updated)
	}); err != nil {
		return domain.BankAccount{}, err
	}

	s.logAudit(ctx, "bank_account_update", "bank_account", id, fmt.Sprintf("balance=%s,currency=%s", updated.Balance.StringFixed(2), updated.Currency))
	return updated, nil
}

func (s *Service) DeleteBankAccount(ctx context.Context, id string) error {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteBankAccount(ctx, actor.UserID, id)
	}); err != nil {
		return err
	}
	s.logAudit(ctx, "bank_account_delete", "bank_account", id, "")
	return nil
}

func accountFromRequest(req domain.AccountRequest) (domain.Account, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Account{}, invalid("account name is required")
	}
	if !req.Type.Valid() {
		return domain.Account{}, invalid("unknown account type %q", req.Type)
	}
	cur, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		Name:     name,
		Type:     req.Type,
		Phone:    strings.TrimSpace(req.Phone),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Balance:  req.Balance,
		Currency: cur,
	}, nil
}

func bankAccountFromRequest(req domain.BankAccountRequest) (domain.BankAccount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.BankAccount{}, invalid("bank account name is required")
	}
	cur, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.BankAccount{}, err
	}
	return domain.BankAccount{
		Name:     name,
		BankName: strings.TrimSpace(req.BankName),
		IBAN:     strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(req.IBAN), " ", "")),
		Balance:  req.Balance,
		Currency: cur,
	}, nil
}
