package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
)

// PostingUseCase persists a converted document and posts its balanced
// dual-currency journal inside the caller's transaction. Posting for a
// company is serialized by an advisory lock held for the transaction.
type PostingUseCase struct {
	documentRepo DocumentRepository
	journalRepo  JournalRepository
	periodRepo   PeriodRepository
	mappingRepo  MappingRepository
	locker       CompanyLocker
	idGen        IDGenerator
}

// NewPostingUseCase creates a new PostingUseCase.
func NewPostingUseCase(
	documentRepo DocumentRepository,
	journalRepo JournalRepository,
	periodRepo PeriodRepository,
	mappingRepo MappingRepository,
	locker CompanyLocker,
	idGen IDGenerator,
) *PostingUseCase {
	return &PostingUseCase{
		documentRepo: documentRepo,
		journalRepo:  journalRepo,
		periodRepo:   periodRepo,
		mappingRepo:  mappingRepo,
		locker:       locker,
		idGen:        idGen,
	}
}

// Post numbers and persists the document, assembles its journal and
// posts it. The journal balances per currency; residue inside the
// rounding tolerance goes to the ROUNDING account, anything larger is a
// hard, permanent failure.
func (uc *PostingUseCase) Post(ctx context.Context, tx Transaction, conv *ConvertedDocument) (*domain.Journal, error) {
	doc := conv.Doc
	if len(conv.Lines) == 0 {
		return nil, domain.ErrEmptyLines
	}

	if err := uc.locker.Lock(ctx, tx, doc.CompanyID); err != nil {
		return nil, err
	}

	lock, err := uc.periodRepo.FindCovering(ctx, tx, doc.CompanyID, doc.DocumentDate)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		return nil, fmt.Errorf("%w: %s is inside %s..%s",
			domain.ErrPeriodLocked,
			doc.DocumentDate.Format("2006-01-02"),
			lock.StartDate.Format("2006-01-02"),
			lock.EndDate.Format("2006-01-02"))
	}

	roles, err := uc.mappingRepo.ResolveRoles(ctx, tx, doc.CompanyID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	year := doc.DocumentDate.Year()

	doc.No, err = uc.documentRepo.NextDocumentNo(ctx, tx, doc.CompanyID, doc.Type, year)
	if err != nil {
		return nil, err
	}
	if err := uc.documentRepo.CreateTx(ctx, tx, doc, conv.Lines, conv.Payments, conv.Taxes); err != nil {
		return nil, err
	}

	journal := &domain.Journal{
		ID:           uc.idGen.Generate(),
		CompanyID:    doc.CompanyID,
		DocumentID:   &doc.ID,
		Status:       domain.JournalPosted,
		PostingDate:  doc.DocumentDate,
		ExchangeRate: doc.ExchangeRate,
		Memo:         fmt.Sprintf("%s %s", doc.Type, doc.No),
		CreatedAt:    now,
	}

	switch doc.Type {
	case domain.DocInvoice:
		err = uc.assembleSale(journal, conv, roles)
	case domain.DocReturn:
		err = uc.assembleReturn(journal, conv, roles)
	case domain.DocReceipt:
		err = uc.assembleReceipt(journal, conv, roles)
	case domain.DocPurchaseInvoice:
		err = uc.assemblePurchaseInvoice(journal, conv, roles)
	default:
		err = fmt.Errorf("%w: document type %q", domain.ErrUnknownEventType, doc.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := uc.autoBalance(journal, roles); err != nil {
		return nil, err
	}

	journal.No, err = uc.journalRepo.NextJournalNo(ctx, tx, doc.CompanyID, year)
	if err != nil {
		return nil, err
	}
	for i := range journal.Lines {
		journal.Lines[i].ID = uc.idGen.Generate()
		journal.Lines[i].JournalID = journal.ID
		journal.Lines[i].LineNo = i + 1
	}
	if err := uc.journalRepo.CreateTx(ctx, tx, journal); err != nil {
		return nil, err
	}

	doc.Status = domain.DocStatusPosted
	doc.JournalID = &journal.ID
	doc.PostedAt = &now
	if err := uc.documentRepo.MarkPosted(ctx, tx, doc.ID, journal.ID, now); err != nil {
		return nil, err
	}

	return journal, nil
}

// assembleSale books a completed sale:
//
//	Dr CASH/BANK       paid
//	Dr AR              open credit
//	    Cr SALES       net of tax
//	    Cr VAT_PAYABLE tax
//	Dr COGS / Cr INVENTORY at cost
func (uc *PostingUseCase) assembleSale(j *domain.Journal, conv *ConvertedDocument, roles domain.RoleSet) error {
	doc := conv.Doc

	for _, p := range conv.Payments {
		acct, err := roles.Account(domain.PaymentMethodRole(p.Method))
		if err != nil {
			return err
		}
		j.Lines = append(j.Lines, domain.JournalLine{
			AccountID: acct,
			DebitUSD:  p.AmountUSD,
			DebitLBP:  p.AmountLBP,
			Memo:      p.Method,
		})
	}

	if doc.OnCredit() {
		acct, err := roles.Account(domain.RoleAR)
		if err != nil {
			return err
		}
		j.Lines = append(j.Lines, domain.JournalLine{
			AccountID:  acct,
			DebitUSD:   doc.CreditUSD,
			DebitLBP:   doc.CreditLBP,
			CustomerID: doc.CustomerID,
		})
	}

	taxUSD, taxLBP := sumTax(conv.Taxes)
	salesAcct, err := roles.Account(domain.RoleSales)
	if err != nil {
		return err
	}
	j.Lines = append(j.Lines, domain.JournalLine{
		AccountID: salesAcct,
		CreditUSD: doc.TotalUSD.Sub(taxUSD),
		CreditLBP: doc.TotalLBP.Sub(taxLBP),
	})
	if !taxUSD.IsZero() || !taxLBP.IsZero() {
		vatAcct, err := roles.Account(domain.RoleVATPayable)
		if err != nil {
			return err
		}
		j.Lines = append(j.Lines, domain.JournalLine{
			AccountID: vatAcct,
			CreditUSD: taxUSD,
			CreditLBP: taxLBP,
		})
	}

	return uc.appendCostLines(j, conv, roles, domain.RoleCOGS, domain.RoleInventory)
}

// assembleReturn reverses a sale at the returned amounts:
//
//	Dr SALES_RETURNS   net of tax
//	Dr VAT_PAYABLE     tax
//	    Cr CASH/BANK   refund
//	Dr INVENTORY / Cr COGS at cost
func (uc *PostingUseCase) assembleReturn(j *domain.Journal, conv *ConvertedDocument, roles domain.RoleSet) error {
	doc := conv.Doc

	taxUSD, taxLBP := sumTax(conv.Taxes)
	retAcct, err := roles.Account(domain.RoleSalesReturns)
	if err != nil {
		return err
	}
	j.Lines = append(j.Lines, domain.JournalLine{
		AccountID: retAcct,
		DebitUSD:  doc.TotalUSD.Sub(taxUSD),
		DebitLBP:  doc.TotalLBP.Sub(taxLBP),
	})
	if !taxUSD.IsZero() || !taxLBP.IsZero() {
		vatAcct, err := roles.Account(domain.RoleVATPayable)
		if err != nil {
			return err
		}
		j.Lines = append(j.Lines, domain.JournalLine{
			AccountID: vatAcct,
			DebitUSD:  taxUSD,
			DebitLBP:  taxLBP,
		})
	}

	for _, p := range conv.Payments {
		acct, err := roles.Account(domain.PaymentMethodRole(p.Method))
		if err != nil {
			return err
		}
		j.Lines = append(j.Lines, domain.JournalLine{
			AccountID: acct,
			CreditUSD: p.AmountUSD,
			CreditLBP: p.AmountLBP,
			Memo:      "refund " + p.Method,
		})
	}

	return uc.appendCostLines(j, conv, roles, domain.RoleInventory, domain.RoleCOGS)
}

// assembleReceipt books goods received not yet invoiced:
//
//	Dr INVENTORY
//	    Cr GRNI
func (uc *PostingUseCase) assembleReceipt(j *domain.Journal, conv *ConvertedDocument, roles domain.RoleSet) error {
	doc := conv.Doc
	invAcct, err := roles.Account(domain.RoleInventory)
	if err != nil {
		return err
	}
	grniAcct, err := roles.Account(domain.RoleGRNI)
	if err != nil {
		return err
	}
	j.Lines = append(j.Lines,
		domain.JournalLine{
			AccountID:   invAcct,
			DebitUSD:    doc.TotalUSD,
			DebitLBP:    doc.TotalLBP,
			WarehouseID: doc.WarehouseID,
		},
		domain.JournalLine{
			AccountID:  grniAcct,
			CreditUSD:  doc.TotalUSD,
			CreditLBP:  doc.TotalLBP,
			SupplierID: doc.SupplierID,
		},
	)
	return nil
}

// assemblePurchaseInvoice clears GRNI against the supplier invoice:
//
//	Dr GRNI              net of tax  (Dr INVENTORY when no receipt ref)
//	Dr VAT_RECOVERABLE   tax
//	    Cr AP            total
func (uc *PostingUseCase) assemblePurchaseInvoice(j *domain.Journal, conv *ConvertedDocument, roles domain.RoleSet) error {
	doc := conv.Doc

	debitRole := domain.RoleGRNI
	if doc.RefDocID == nil {
		debitRole = domain.RoleInventory
	}
	debitAcct, err := roles.Account(debitRole)
	if err != nil {
		return err
	}

	taxUSD, taxLBP := sumTax(conv.Taxes)
	j.Lines = append(j.Lines, domain.JournalLine{
		AccountID: debitAcct,
		DebitUSD:  doc.TotalUSD.Sub(taxUSD),
		DebitLBP:  doc.TotalLBP.Sub(taxLBP),
	})
	if !taxUSD.IsZero() || !taxLBP.IsZero() {
		vatAcct, err := roles.Account(domain.RoleVATRecoverable)
		if err != nil {
			return err
		}
		j.Lines = append(j.Lines, domain.JournalLine{
			AccountID: vatAcct,
			DebitUSD:  taxUSD,
			DebitLBP:  taxLBP,
		})
	}

	apAcct, err := roles.Account(domain.RoleAP)
	if err != nil {
		return err
	}
	j.Lines = append(j.Lines, domain.JournalLine{
		AccountID:  apAcct,
		CreditUSD:  doc.TotalUSD,
		CreditLBP:  doc.TotalLBP,
		SupplierID: doc.SupplierID,
	})
	return nil
}

func (uc *PostingUseCase) appendCostLines(j *domain.Journal, conv *ConvertedDocument, roles domain.RoleSet, debitRole, creditRole domain.Role) error {
	costUSD, costLBP := decimal.Zero, decimal.Zero
	for _, l := range conv.Lines {
		costUSD = costUSD.Add(l.CostUSD)
		costLBP = costLBP.Add(l.CostLBP)
	}
	if costUSD.IsZero() && costLBP.IsZero() {
		return nil
	}

	debitAcct, err := roles.Account(debitRole)
	if err != nil {
		return err
	}
	creditAcct, err := roles.Account(creditRole)
	if err != nil {
		return err
	}
	j.Lines = append(j.Lines,
		domain.JournalLine{AccountID: debitAcct, DebitUSD: costUSD, DebitLBP: costLBP, WarehouseID: conv.Doc.WarehouseID},
		domain.JournalLine{AccountID: creditAcct, CreditUSD: costUSD, CreditLBP: costLBP, WarehouseID: conv.Doc.WarehouseID},
	)
	return nil
}

// autoBalance checks per-currency balance and absorbs sub-tolerance
// residue into a rounding line. Residue beyond tolerance is rejected.
func (uc *PostingUseCase) autoBalance(j *domain.Journal, roles domain.RoleSet) error {
	diffUSD, diffLBP := j.Imbalance()
	if diffUSD.IsZero() && diffLBP.IsZero() {
		return nil
	}
	if !domain.WithinRoundingTolerance(diffUSD, diffLBP) {
		return fmt.Errorf("%w: off by %s USD / %s LBP", domain.ErrImbalancedJournal, diffUSD, diffLBP)
	}

	acct, err := roles.Account(domain.RoleRounding)
	if err != nil {
		return err
	}
	line := domain.JournalLine{AccountID: acct, Memo: "rounding"}
	if diffUSD.IsPositive() {
		line.CreditUSD = diffUSD
	} else if diffUSD.IsNegative() {
		line.DebitUSD = diffUSD.Neg()
	}
	if diffLBP.IsPositive() {
		line.CreditLBP = diffLBP
	} else if diffLBP.IsNegative() {
		line.DebitLBP = diffLBP.Neg()
	}
	j.Lines = append(j.Lines, line)
	return nil
}

func sumTax(taxes []domain.DocumentTax) (usd, lbp decimal.Decimal) {
	for _, t := range taxes {
		usd = usd.Add(t.TaxUSD)
		lbp = lbp.Add(t.TaxLBP)
	}
	return usd, lbp
}
