package normalize

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Activity log columns. Each field lists its header aliases in lookup order.
const (
	colActivityDate   = "今日の日付"
	colActivityWorker = "名前"
	groupMain         = "メイン商材"
	groupSubFormat    = "サブ商材"
	maxSubProducts    = 3
	subEndMarker      = "終了"
)

var (
	fieldMainProduct      = []string{"新規架電：メイン商材"}
	fieldSubProduct       = []string{"ルート架電：サブ商材"}
	fieldCallHours        = []string{"総荷電時間(単位は●時間)", "総架電時間(単位は●時間)"}
	fieldCallCount        = []string{"架電数　※半角で入力", "架電数"}
	fieldReceptionBlocked = []string{"受付BK　※半角で入力", "受付BK"}
	fieldNoContact        = []string{"担当不在　※半角で入力", "担当不在"}
	fieldDisconnects      = []string{"不通　※半角で入力", "不通"}
	fieldContactConnected = []string{"担当コネクト　※半角で入力", "担当コネクト（担当BK＋アポ獲得）　※半角で入力", "担当コネクト"}
	fieldContactBlocked   = []string{"担当BK（見込みも含む）　※半角で入力", "担当BK"}
	fieldAppointments     = []string{"アポ獲得　※半角で入力", "アポ獲得"}
)

// Deal log and rejection log columns.
var (
	colDealCreated       = []string{"作成日時"}
	colDealStart         = []string{"商談開始日時"}
	colDealEnd           = []string{"商談終了日時"}
	colDealWorker        = []string{"パートナー担当者"}
	colDealMaker         = []string{"メーカー名"}
	colDealProduct       = []string{"プロダクト名", "サービス名"}
	colDealCommission    = []string{"報酬"}
	colDealCorporateID   = []string{"法人番号"}
	colDealCorporateName = []string{"会社名"}
	colDealStatus        = []string{"商談ステータス"}
	colDealReason        = []string{"却下理由"}

	colRejectDate    = []string{"発生年月"}
	colRejectWorker  = []string{"パートナー担当者", "担当者", "名前"}
	colRejectCompany = []string{"会社名"}
	colRejectProduct = []string{"プロダクト"}
	colRejectReason  = []string{"理由"}
	colRejectDetail  = []string{"FB詳細", "却下理由"}
)

// Raw status spellings recognized by ResolveStatus.
var (
	approvedStatuses = map[string]bool{"承認": true, "approved": true}
	rejectedStatuses = map[string]bool{"却下": true, "rejected": true}
	pendingStatuses  = map[string]bool{"承認待ち": true, "要対応": true, "pending": true, "needs action": true}
)

// ResolveStatus is the single rule deciding a deal's status. An explicit
// approval only counts when a commission is present; a blank status is
// approved iff a commission is present; anything unrecognized is unspecified.
func ResolveStatus(raw string, commissionPresent bool) model.DealStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		if commissionPresent {
			return model.DealApproved
		}
		return model.DealRejected
	case approvedStatuses[s]:
		if commissionPresent {
			return model.DealApproved
		}
		return model.DealRejected
	case rejectedStatuses[s]:
		return model.DealRejected
	case pendingStatuses[s]:
		return model.DealPending
	default:
		return model.DealUnspecified
	}
}

// Normalizer converts raw tables into a Dataset.
type Normalizer struct {
	p *Parser
}

// New returns a Normalizer parsing dates in loc.
func New(loc *time.Location, now func() time.Time) *Normalizer {
	return &Normalizer{p: NewParser(loc, now)}
}

// Faults returns the number of recovered parse faults so far.
func (n *Normalizer) Faults() int { return n.p.Faults() }

// Dataset normalizes all four tables.
func (n *Normalizer) Dataset(t model.RawTables) model.Dataset {
	roster := n.Roster(t.Roster)
	ds := model.Dataset{
		Roster:     roster,
		Rejections: n.Rejections(t.Rejections),
		Deals:      n.Deals(t.Deals),
		Activities: n.Activity(t.Activity, roster),
	}
	zap.L().Debug("normalize: dataset ready",
		zap.Int("workers", len(ds.Roster)),
		zap.Int("activities", len(ds.Activities)),
		zap.Int("deals", len(ds.Deals)),
		zap.Int("rejections", len(ds.Rejections)),
		zap.Int("parse_faults", n.Faults()),
	)
	return ds
}

// Roster reads the worker roster. The first row is a header; columns are
// positional: B name, C join date, D branch.
func (n *Normalizer) Roster(rows [][]string) model.Roster {
	roster := make(model.Roster)
	for i, row := range rows {
		if i == 0 || IsBlank(row) {
			continue
		}
		name := strings.TrimSpace(cell(row, 1))
		if name == "" {
			continue
		}
		roster[name] = model.WorkerRecord{
			WorkerID: name,
			Name:     name,
			JoinDate: n.p.Date(cell(row, 2)),
			Branch:   strings.TrimSpace(cell(row, 3)),
		}
	}
	return roster
}

// Rejections reads the external rejection log.
func (n *Normalizer) Rejections(rows [][]string) []model.RejectionRecord {
	if len(rows) == 0 {
		return nil
	}
	header := trimAll(rows[0])
	var out []model.RejectionRecord
	for _, cells := range rows[1:] {
		if IsBlank(cells) {
			continue
		}
		r := NewRow(header, cells)
		out = append(out, model.RejectionRecord{
			Date:    n.p.Date(r.First(colRejectDate...)),
			Worker:  r.First(colRejectWorker...),
			Company: r.First(colRejectCompany...),
			Product: r.First(colRejectProduct...),
			Reason:  r.First(colRejectReason...),
			Detail:  r.First(colRejectDetail...),
		})
	}
	return out
}

// Deals reads the deal log. The record date is the creation timestamp,
// falling back to the deal start.
func (n *Normalizer) Deals(rows [][]string) []model.DealRecord {
	if len(rows) == 0 {
		return nil
	}
	header := trimAll(rows[0])
	var out []model.DealRecord
	for _, cells := range rows[1:] {
		if IsBlank(cells) {
			continue
		}
		r := NewRow(header, cells)
		start := n.p.Date(r.First(colDealStart...))
		date := n.p.Date(r.First(colDealCreated...))
		if date == nil {
			date = start
		}
		commission := n.p.OptionalNumber(r.First(colDealCommission...))
		raw := r.First(colDealStatus...)
		out = append(out, model.DealRecord{
			Date:            date,
			Worker:          r.First(colDealWorker...),
			Company:         r.First(colDealMaker...),
			Product:         r.First(colDealProduct...),
			Commission:      commission,
			DealStart:       start,
			DealEnd:         n.p.Date(r.First(colDealEnd...)),
			Status:          ResolveStatus(raw, commission != nil),
			RawStatus:       raw,
			CorporateID:     r.First(colDealCorporateID...),
			CorporateName:   r.First(colDealCorporateName...),
			RejectionReason: r.First(colDealReason...),
		})
	}
	return out
}

// Activity reads the grouped daily activity log. Rows 1 and 2 form the
// grouped header; the main block resolves with the bare-key fallback, sub
// blocks only by their own group prefix.
func (n *Normalizer) Activity(rows [][]string, roster model.Roster) []model.ActivityRecord {
	if len(rows) < 2 {
		return nil
	}
	headers := GroupedHeaders(rows[0], rows[1])

	var out []model.ActivityRecord
	for idx, cells := range rows[2:] {
		if IsBlank(cells) {
			continue
		}
		r := NewRow(headers, cells)
		worker := r.Get(colActivityWorker)

		rec := model.ActivityRecord{
			ReportID: idx + 1,
			Date:     n.p.Date(r.Get(colActivityDate)),
			Worker:   worker,
			Main:     n.block(r, groupMain, r.LookupAny(groupMain, fieldMainProduct...), r.LookupAny),
		}
		if w, ok := roster[worker]; ok {
			rec.Branch = w.Branch
			rec.JoinDate = w.JoinDate
		}

		for i := 1; i <= maxSubProducts; i++ {
			group := groupSubFormat + strconv.Itoa(i)
			product := r.InGroup(group, fieldSubProduct...)
			if product == "" || product == subEndMarker {
				continue
			}
			rec.Subs = append(rec.Subs, n.block(r, group, product, r.InGroup))
		}
		out = append(out, rec)
	}
	return out
}

func (n *Normalizer) block(r Row, group, product string, get func(string, ...string) string) model.ProductActivity {
	num := func(fields []string) float64 {
		v := n.p.Number(get(group, fields...))
		if v < 0 {
			return 0
		}
		return v
	}
	return model.ProductActivity{
		Product:          product,
		CallHours:        num(fieldCallHours),
		CallCount:        num(fieldCallCount),
		ReceptionBlocked: num(fieldReceptionBlocked),
		NoContact:        num(fieldNoContact),
		Disconnects:      num(fieldDisconnects),
		ContactConnected: num(fieldContactConnected),
		ContactBlocked:   num(fieldContactBlocked),
		AppointmentsWon:  num(fieldAppointments),
	}
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
