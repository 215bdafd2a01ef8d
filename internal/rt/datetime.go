package rt

import "fmt"

// The datetime module. Its constructor table is exported through a capsule
// so converters import it once and cache the API for the process lifetime.

// DateObject is a calendar date.
type DateObject struct {
	Header
	Year  int
	Month int
	Day   int
}

// TimeObject is a wall-clock time of day.
type TimeObject struct {
	Header
	Hour   int
	Minute int
	Second int
	Micro  int
}

// DateTimeObject is a combined date and time.
type DateTimeObject struct {
	Header
	Date DateObject
	Time TimeObject
}

// DeltaObject is a duration split the way the runtime stores it.
type DeltaObject struct {
	Header
	Days    int
	Seconds int
	Micros  int
}

var (
	DateType     = newStaticType("datetime.date")
	TimeType     = newStaticType("datetime.time")
	DateTimeType = newStaticType("datetime.datetime")
	DeltaType    = newStaticType("datetime.timedelta")
)

func (d *DateObject) Inspect() string {
	return fmt.Sprintf("datetime.date(%d, %d, %d)", d.Year, d.Month, d.Day)
}

func (t *TimeObject) Inspect() string {
	return fmt.Sprintf("datetime.time(%d, %d, %d, %d)", t.Hour, t.Minute, t.Second, t.Micro)
}

func (dt *DateTimeObject) Inspect() string {
	return fmt.Sprintf("datetime.datetime(%d, %d, %d, %d, %d, %d, %d)",
		dt.Date.Year, dt.Date.Month, dt.Date.Day,
		dt.Time.Hour, dt.Time.Minute, dt.Time.Second, dt.Time.Micro)
}

func (d *DeltaObject) Inspect() string {
	return fmt.Sprintf("datetime.timedelta(%d, %d, %d)", d.Days, d.Seconds, d.Micros)
}

// DateTimeAPI is the capsule payload: constructors plus the type tags a
// converter needs for instance checks.
type DateTimeAPI struct {
	DateType     *Type
	TimeType     *Type
	DateTimeType *Type
	DeltaType    *Type

	NewDate     func(year, month, day int) *DateObject
	NewTime     func(hour, minute, second, micro int) *TimeObject
	NewDateTime func(year, month, day, hour, minute, second, micro int) *DateTimeObject
	NewDelta    func(days, seconds, micros int) *DeltaObject
}

// DateTimeCapsuleName is the attribute the capsule is published under.
const DateTimeCapsuleName = "datetime_CAPI"

func newDateTimeModule(r *Runtime) (*Module, error) {
	api := &DateTimeAPI{
		DateType:     DateType,
		TimeType:     TimeType,
		DateTimeType: DateTimeType,
		DeltaType:    DeltaType,
		NewDate: func(y, m, d int) *DateObject {
			return &DateObject{Header: NewHeader(DateType), Year: y, Month: m, Day: d}
		},
		NewTime: func(h, m, s, us int) *TimeObject {
			return &TimeObject{Header: NewHeader(TimeType), Hour: h, Minute: m, Second: s, Micro: us}
		},
		NewDateTime: func(y, mo, d, h, mi, s, us int) *DateTimeObject {
			return &DateTimeObject{
				Header: NewHeader(DateTimeType),
				Date:   DateObject{Year: y, Month: mo, Day: d},
				Time:   TimeObject{Hour: h, Minute: mi, Second: s, Micro: us},
			}
		},
		NewDelta: func(days, seconds, micros int) *DeltaObject {
			return &DeltaObject{Header: NewHeader(DeltaType), Days: days, Seconds: seconds, Micros: micros}
		},
	}

	m := NewModule("datetime", "date and time types")
	cap := NewCapsule(DateTimeCapsuleName, api)
	if err := m.SetAttr(r, DateTimeCapsuleName, cap); err != nil {
		Decref(cap)
		Decref(m)
		return nil, err
	}
	Decref(cap) // module dict holds its own reference now
	return m, nil
}
