// Package tui implements the terminal lead dashboard on top of leads.Store.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leadboard/leadboard/internal/leads"
	"github.com/leadboard/leadboard/internal/shared"
	"github.com/leadboard/leadboard/internal/view"
)

type mode int

const (
	modeList mode = iota
	modeDetail
	modePicker
)

// Config groups the Model dependencies.
type Config struct {
	Store    *leads.Store
	Notifier *StatusNotifier
	PageSize int
	// Timeout bounds every Store call issued from the UI.
	Timeout time.Duration
	Keys    *KeyMap
	Styles  *Styles
}

// opDoneMsg reports the completion of a Store call.
type opDoneMsg struct {
	op     leads.Operation
	leadID string
	err    error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	store    *leads.Store
	notifier *StatusNotifier
	keys     KeyMap
	styles   Styles
	timeout  time.Duration
	pageSize int

	mode    mode
	search  textinput.Model
	page    int
	cursor  int
	detail  string // Lead id shown in the detail and picker views.
	confirm string // Lead id awaiting delete confirmation.

	picker      []leads.Consultant
	pickerIndex int

	// pending marks leads whose Store call has been issued but not reported
	// back yet. Replaced, never mutated, since Model is copied by value.
	pending map[string]leads.Operation

	status    Notification
	statusSeq uint64
	lastErr   error

	width  int
	height int
}

// NewModel builds the dashboard model.
func NewModel(cfg Config) Model {
	keys := DefaultKeyMap
	if cfg.Keys != nil {
		keys = *cfg.Keys
	}
	styles := DefaultStyles()
	if cfg.Styles != nil {
		styles = *cfg.Styles
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewStatusNotifier(nil)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 12
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	search := textinput.New()
	search.Placeholder = "Buscar por nome, email, segmento, telefone ou CNPJ"
	search.Prompt = "/ "
	search.CharLimit = 120

	return Model{
		store:    cfg.Store,
		notifier: notifier,
		keys:     keys,
		styles:   styles,
		timeout:  timeout,
		pageSize: pageSize,
		search:   search,
		page:     1,
	}
}

// Init loads the list on startup.
func (model Model) Init() tea.Cmd {
	return model.run(leads.OpRefresh, "", func(ctx context.Context) error {
		return model.store.EnsureLoaded(ctx)
	})
}

// Update handles a message.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.search.Width = max(20, message.Width-4)
		return model, nil

	case opDoneMsg:
		model.clearPending(message.leadID)
		model.lastErr = message.err
		model.pullStatus()
		if message.op == leads.OpDelete && message.err == nil && model.detail == message.leadID {
			model.closeDetail()
		}
		if model.mode == modeDetail {
			if _, ok := model.store.Lead(model.detail); !ok {
				model.closeDetail()
			}
		}
		model.clamp()
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)
	}

	if model.search.Focused() {
		var cmd tea.Cmd
		model.search, cmd = model.search.Update(message)
		return model, cmd
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if message.Type == tea.KeyCtrlC {
		return model, tea.Quit
	}
	if model.search.Focused() {
		return model.handleSearchKey(message)
	}
	if model.confirm != "" {
		return model.handleConfirmKey(message)
	}
	switch model.mode {
	case modePicker:
		return model.handlePickerKey(message)
	case modeDetail:
		return model.handleDetailKey(message)
	default:
		return model.handleListKey(message)
	}
}

func (model Model) handleSearchKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyEsc:
		model.search.SetValue("")
		model.search.Blur()
		model.resetPage()
		return model, nil
	case tea.KeyEnter:
		model.search.Blur()
		return model, nil
	}
	before := model.search.Value()
	var cmd tea.Cmd
	model.search, cmd = model.search.Update(message)
	if model.search.Value() != before {
		model.resetPage()
	}
	return model, cmd
}

func (model Model) handleConfirmKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	leadID := model.confirm
	model.confirm = ""
	if !key.Matches(message, model.keys.Confirm) {
		return model, nil
	}
	cmd := model.start(leads.OpDelete, leadID, func(ctx context.Context) error {
		return model.store.DeleteLead(ctx, leadID)
	})
	return model, cmd
}

func (model Model) handlePickerKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Back):
		model.mode = modeDetail
		return model, nil
	case key.Matches(message, model.keys.Up):
		if model.pickerIndex > 0 {
			model.pickerIndex--
		}
		return model, nil
	case key.Matches(message, model.keys.Down):
		if model.pickerIndex < len(model.picker)-1 {
			model.pickerIndex++
		}
		return model, nil
	case key.Matches(message, model.keys.Open):
		model.mode = modeDetail
		if len(model.picker) == 0 {
			return model, nil
		}
		leadID := model.detail
		consultantID := model.picker[model.pickerIndex].ID
		cmd := model.start(leads.OpAssign, leadID, func(ctx context.Context) error {
			return model.store.AssignConsultant(ctx, leadID, consultantID)
		})
		return model, cmd
	}
	return model, nil
}

func (model Model) handleDetailKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Back):
		model.closeDetail()
		return model, nil
	case key.Matches(message, model.keys.Toggle):
		cmd := model.toggle(model.detail)
		return model, cmd
	case key.Matches(message, model.keys.Delete):
		model.confirm = model.detail
		return model, nil
	case key.Matches(message, model.keys.Assign):
		model.openPicker()
		return model, nil
	case key.Matches(message, model.keys.Refresh):
		return model, model.refresh()
	}
	return model, nil
}

func (model Model) handleListKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	current, hasCurrent := model.current()
	pagination := model.pagination()

	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.visible())-1 {
			model.cursor++
		}
	case key.Matches(message, model.keys.PrevPage):
		model.gotoPage(pagination.Page - 1)
	case key.Matches(message, model.keys.NextPage):
		model.gotoPage(pagination.Page + 1)
	case key.Matches(message, model.keys.FirstPage):
		model.gotoPage(1)
	case key.Matches(message, model.keys.LastPage):
		model.gotoPage(pagination.TotalPages)
	case key.Matches(message, model.keys.Search):
		cmd := model.search.Focus()
		return model, cmd
	case key.Matches(message, model.keys.Back):
		if model.search.Value() != "" {
			model.search.SetValue("")
			model.resetPage()
		}
	case key.Matches(message, model.keys.Open):
		if hasCurrent {
			model.openDetail(current.ID)
		}
	case key.Matches(message, model.keys.Toggle):
		if hasCurrent {
			cmd := model.toggle(current.ID)
			return model, cmd
		}
	case key.Matches(message, model.keys.Delete):
		if hasCurrent {
			model.confirm = current.ID
		}
	case key.Matches(message, model.keys.Assign):
		if hasCurrent {
			model.openDetail(current.ID)
			model.openPicker()
		}
	case key.Matches(message, model.keys.Refresh):
		return model, model.refresh()
	}
	return model, nil
}

func (model *Model) toggle(leadID string) tea.Cmd {
	return model.start(leads.OpToggle, leadID, func(ctx context.Context) error {
		return model.store.ToggleStatus(ctx, leadID)
	})
}

// start marks leadID pending and returns the command running fn. A lead that
// is already pending is left alone.
func (model *Model) start(op leads.Operation, leadID string, fn func(context.Context) error) tea.Cmd {
	if _, busy := model.pending[leadID]; busy {
		return nil
	}
	pending := make(map[string]leads.Operation, len(model.pending)+1)
	for id, running := range model.pending {
		pending[id] = running
	}
	pending[leadID] = op
	model.pending = pending
	return model.run(op, leadID, fn)
}

func (model *Model) clearPending(leadID string) {
	if _, ok := model.pending[leadID]; !ok {
		return
	}
	pending := make(map[string]leads.Operation, len(model.pending))
	for id, op := range model.pending {
		if id != leadID {
			pending[id] = op
		}
	}
	model.pending = pending
}

func (model Model) pendingOp(leadID string) (leads.Operation, bool) {
	if op, ok := model.pending[leadID]; ok {
		return op, true
	}
	return model.store.Pending(leadID)
}

func (model Model) refresh() tea.Cmd {
	return model.run(leads.OpRefresh, "", func(ctx context.Context) error {
		return model.store.Refresh(ctx)
	})
}

// run executes fn off the UI loop and reports back with opDoneMsg.
func (model Model) run(op leads.Operation, leadID string, fn func(context.Context) error) tea.Cmd {
	timeout := model.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDoneMsg{op: op, leadID: leadID, err: fn(ctx)}
	}
}

func (model *Model) openDetail(leadID string) {
	if _, ok := model.store.Select(leadID); !ok {
		return
	}
	model.detail = leadID
	model.mode = modeDetail
}

func (model *Model) closeDetail() {
	model.store.ClearSelection()
	model.detail = ""
	model.mode = modeList
}

func (model *Model) openPicker() {
	lead, ok := model.store.Lead(model.detail)
	if !ok {
		return
	}
	model.picker = leads.Active(model.store.Directory())
	model.pickerIndex = 0
	for i, c := range model.picker {
		if c.ID == lead.ConsultantIDValue() {
			model.pickerIndex = i
			break
		}
	}
	model.mode = modePicker
}

func (model *Model) pullStatus() {
	latest, seq := model.notifier.Latest()
	if seq != model.statusSeq {
		model.status = latest
		model.statusSeq = seq
	}
}

func (model *Model) resetPage() {
	model.page = 1
	model.cursor = 0
}

func (model *Model) gotoPage(page int) {
	if model.store.Loading() {
		return
	}
	p := shared.NewPagination(page, model.pageSize, len(model.filtered()))
	if p.Page != model.page {
		model.page = p.Page
		model.cursor = 0
	}
}

// clamp keeps page and cursor inside the current filtered list.
func (model *Model) clamp() {
	p := model.pagination()
	model.page = p.Page
	if n := len(model.visible()); model.cursor >= n {
		model.cursor = max(0, n-1)
	}
}

func (model Model) filtered() []leads.Lead {
	return leads.Filter(model.store.Snapshot().Leads, model.search.Value())
}

func (model Model) pagination() shared.Pagination {
	return shared.NewPagination(model.page, model.pageSize, len(model.filtered()))
}

func (model Model) visible() []leads.Lead {
	filtered := model.filtered()
	return shared.Paginate(filtered, shared.NewPagination(model.page, model.pageSize, len(filtered)))
}

func (model Model) current() (leads.Lead, bool) {
	visible := model.visible()
	if model.cursor < 0 || model.cursor >= len(visible) {
		return leads.Lead{}, false
	}
	return visible[model.cursor], true
}

// View renders the model.
func (model Model) View() string {
	var b strings.Builder
	b.WriteString(model.styles.Title.Render("Leadboard"))
	b.WriteString("\n")

	switch model.mode {
	case modeDetail, modePicker:
		b.WriteString(model.viewDetail())
	default:
		b.WriteString(model.viewList())
	}

	b.WriteString("\n")
	b.WriteString(model.viewStatus())
	b.WriteString("\n")
	b.WriteString(model.viewHelp())
	return b.String()
}

func (model Model) viewList() string {
	snap := model.store.Snapshot()
	term := model.search.Value()
	filtered := leads.Filter(snap.Leads, term)
	stats := leads.Stats(filtered)

	var b strings.Builder
	count := snap.Total
	if term != "" {
		count = len(filtered)
	}
	fmt.Fprintf(&b, "%d leads · %s %d (%d%%) · %s %d (%d%%)\n",
		count,
		model.styles.Active.Render("Ativos"), stats.Active, stats.ActivePercent,
		model.styles.Inactive.Render("Inativos"), stats.Inactive, stats.InactivePercent,
	)
	if model.search.Focused() || term != "" {
		b.WriteString(model.search.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if snap.Loading && len(snap.Leads) == 0 {
		b.WriteString(model.styles.Muted.Render("Carregando leads..."))
		b.WriteString("\n")
		return b.String()
	}
	if len(filtered) == 0 {
		if term != "" {
			fmt.Fprintf(&b, "Nenhum lead encontrado para %q.\n", term)
		} else {
			b.WriteString("Nenhum lead cadastrado.\n")
		}
		return b.String()
	}

	pagination := shared.NewPagination(model.page, model.pageSize, len(filtered))
	for i, lead := range shared.Paginate(filtered, pagination) {
		b.WriteString(model.viewRow(i, lead))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(model.viewPager(shared.NewPager(pagination, snap.Loading)))
	return b.String()
}

func (model Model) viewRow(index int, lead leads.Lead) string {
	marker := "  "
	name := lead.Name
	if index == model.cursor {
		marker = "› "
		name = model.styles.Selected.Render(name)
	}
	status := model.styles.Active.Render("ativo")
	if !lead.Active {
		status = model.styles.Inactive.Render("inativo")
	}
	consultant := lead.ConsultantNameValue()
	if consultant == "" {
		consultant = "sem consultor"
	}
	row := fmt.Sprintf("%s%s  %s  %s  %s", marker, name, model.styles.Muted.Render(lead.Email), status, model.styles.Muted.Render(consultant))
	if op, ok := model.pendingOp(lead.ID); ok {
		row += model.styles.Muted.Render(fmt.Sprintf("  (%s...)", op))
	}
	if model.confirm == lead.ID {
		row += model.styles.Error.Render("  excluir? y/n")
	}
	return row
}

func (model Model) viewPager(pager shared.Pager) string {
	if !pager.Visible {
		return ""
	}
	pages := make([]string, 0, len(pager.Pages))
	for _, n := range pager.Pages {
		label := fmt.Sprintf("%d", n)
		if n == pager.Current {
			label = model.styles.Current.Render(label)
		}
		pages = append(pages, label)
	}
	line := fmt.Sprintf("Página %d de %d  %s", pager.Current, pager.Total, strings.Join(pages, " "))
	return model.styles.Muted.Render(line) + "\n"
}

func (model Model) viewDetail() string {
	lead, ok := model.store.Lead(model.detail)
	if !ok {
		return "Lead não encontrado.\n"
	}
	status := model.styles.Active.Render("Ativo")
	if !lead.Active {
		status = model.styles.Inactive.Render("Inativo")
	}
	consultant := lead.ConsultantNameValue()
	if consultant == "" {
		consultant = "Não atribuído"
	}
	taxID := lead.TaxIDValue()
	if taxID == "" {
		taxID = "Não informado"
	}

	rows := [][2]string{
		{"Email", lead.Email},
		{"Telefone", view.FormatPhone(lead.PhoneValue())},
		{"CNPJ", taxID},
		{"Faturamento anual", view.FormatBRL(lead.AnnualRevenue)},
		{"Segmento", lead.Segment},
		{"Regime tributário", lead.TaxRegime},
		{"Status", status},
		{"Consultor", consultant},
		{"Cadastro", view.FormatDate(lead.CreatedTime())},
	}
	if updated := lead.UpdatedTime(); !updated.IsZero() {
		rows = append(rows, [2]string{"Atualização", view.FormatDate(updated)})
	}

	var b strings.Builder
	b.WriteString(model.styles.Selected.Render(lead.Name))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(model.styles.Label.Render(row[0]))
		b.WriteString(row[1])
		b.WriteString("\n")
	}
	if op, pending := model.pendingOp(lead.ID); pending {
		b.WriteString(model.styles.Muted.Render(fmt.Sprintf("%s em andamento...", op)))
		b.WriteString("\n")
	}
	if model.confirm == lead.ID {
		b.WriteString(model.styles.Error.Render("Excluir este lead? Esta ação não pode ser desfeita. y/n"))
		b.WriteString("\n")
	}
	out := model.styles.Box.Render(b.String())
	if model.mode == modePicker {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, model.viewPicker())
	}
	return out + "\n"
}

func (model Model) viewPicker() string {
	var b strings.Builder
	b.WriteString("Atribuir consultor\n")
	if len(model.picker) == 0 {
		b.WriteString(model.styles.Muted.Render("Nenhum consultor ativo."))
	}
	for i, c := range model.picker {
		line := "  " + c.Name
		if i == model.pickerIndex {
			line = model.styles.Selected.Render("› " + c.Name)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return model.styles.Box.Render(b.String())
}

func (model Model) viewStatus() string {
	if model.status.Title == "" {
		if model.store.Loading() {
			return model.styles.Muted.Render("Sincronizando...")
		}
		return ""
	}
	style := model.styles.Success
	if model.status.Kind == leads.NotifyError {
		style = model.styles.Error
	}
	line := style.Render(model.status.Title+": ") + model.status.Message
	if model.status.Kind == leads.NotifyError && model.lastErr != nil {
		line += model.styles.Muted.Render(" (" + shared.UserSafeMessage(model.lastErr) + ")")
	}
	return line
}

func (model Model) viewHelp() string {
	bindings := model.keys.listHelp()
	switch model.mode {
	case modeDetail:
		bindings = model.keys.detailHelp()
	case modePicker:
		bindings = model.keys.pickerHelp()
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		help := b.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return model.styles.Muted.Render(strings.Join(parts, " · "))
}
