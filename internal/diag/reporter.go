package diag

// Reporter is the sink phases report to.
type Reporter interface {
	Report(level Level, code Code, loc Location, msg string, notes []Note)
}

// ReportBuilder accumulates notes before emitting once.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

func NewReportBuilder(r Reporter, level Level, code Code, loc Location, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: New(level, code, loc, msg)}
}

func ReportError(r Reporter, code Code, loc Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, LevelError, code, loc, msg)
}

func ReportWarning(r Reporter, code Code, loc Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, LevelWarning, code, loc, msg)
}

func ReportNote(r Reporter, code Code, loc Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, LevelNote, code, loc, msg)
}

func ReportDebug(r Reporter, code Code, loc Location, msg string) *ReportBuilder {
	return NewReportBuilder(r, LevelDebug, code, loc, msg)
}

func (b *ReportBuilder) WithNote(loc Location, msg string) *ReportBuilder {
	if b == nil {
		return nil
	}
	b.diag = b.diag.WithNote(loc, msg)
	return b
}

// Emit sends the diagnostic to the reporter. Later calls do nothing.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	b.emitted = true
	if b.reporter != nil {
		d := b.diag
		b.reporter.Report(d.Level, d.Code, d.Location, d.Message, d.Notes)
	}
}

func (b *ReportBuilder) Diagnostic() Diagnostic {
	if b == nil {
		return Diagnostic{}
	}
	return b.diag
}

// BagReporter writes into a Bag, dropping diagnostics below Min.
type BagReporter struct {
	Bag *Bag
	Min Level
}

func (r BagReporter) Report(level Level, code Code, loc Location, msg string, notes []Note) {
	if r.Bag == nil || level < r.Min {
		return
	}
	r.Bag.Add(Diagnostic{Level: level, Code: code, Location: loc, Message: msg, Notes: notes})
}

type nopReporter struct{}

func (nopReporter) Report(Level, Code, Location, string, []Note) {}

// NopReporter discards everything.
var NopReporter Reporter = nopReporter{}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(level Level, code Code, loc Location, msg string, notes []Note)

func (f ReporterFunc) Report(level Level, code Code, loc Location, msg string, notes []Note) {
	f(level, code, loc, msg, notes)
}
