package survey

import "sort"

type QuestionType string

const (
	TypeBool          QuestionType = "bool"
	TypeText          QuestionType = "text"
	TypeInteger       QuestionType = "integer"
	TypeFloat         QuestionType = "float"
	TypeDate          QuestionType = "date"
	TypeDay           QuestionType = "day"
	TypeMonth         QuestionType = "month"
	TypeYear          QuestionType = "year"
	TypeFeetInches    QuestionType = "feet-inches"
	TypePounds        QuestionType = "pounds"
	TypeScale         QuestionType = "scale"
	TypeChoice        QuestionType = "choice"
	TypeChoiceRef     QuestionType = "choice-ref"
	TypeChoices       QuestionType = "choices"
	TypeOpenChoice    QuestionType = "open-choice"
	TypeBloodPressure QuestionType = "blood-pressure"
	TypeFile          QuestionType = "file"
	TypeBullet        QuestionType = "bullet"
)

// ValueField names a field of Answer.
type ValueField string

const (
	FieldBool          ValueField = "boolValue"
	FieldText          ValueField = "textValue"
	FieldInteger       ValueField = "integerValue"
	FieldFloat         ValueField = "floatValue"
	FieldNumber        ValueField = "numberValue"
	FieldDate          ValueField = "dateValue"
	FieldDay           ValueField = "dayValue"
	FieldMonth         ValueField = "monthValue"
	FieldYear          ValueField = "yearValue"
	FieldChoice        ValueField = "choice"
	FieldChoices       ValueField = "choices"
	FieldFile          ValueField = "fileValue"
	FieldBloodPressure ValueField = "bloodPressureValue"
	FieldFeetInches    ValueField = "feetInchesValue"
)

// TypeSchema describes what an answer to a question type must carry.
type TypeSchema struct {
	Type QuestionType
	// Fields lists the accepted value fields; any one of them satisfies the type.
	Fields []ValueField
	// Ranged types parse the question parameter as "min:max".
	Ranged bool
}

// Provided reports whether a carries one of the schema's value fields.
func (s TypeSchema) Provided(a *Answer) bool {
	for _, f := range s.Fields {
		if a.Has(f) {
			return true
		}
	}
	return false
}

var typeSchemas = map[QuestionType]TypeSchema{
	TypeBool:          {Type: TypeBool, Fields: []ValueField{FieldBool}},
	TypeText:          {Type: TypeText, Fields: []ValueField{FieldText}},
	TypeInteger:       {Type: TypeInteger, Fields: []ValueField{FieldInteger}},
	TypeFloat:         {Type: TypeFloat, Fields: []ValueField{FieldFloat}},
	TypeDate:          {Type: TypeDate, Fields: []ValueField{FieldDate}},
	TypeDay:           {Type: TypeDay, Fields: []ValueField{FieldDay}},
	TypeMonth:         {Type: TypeMonth, Fields: []ValueField{FieldMonth}},
	TypeYear:          {Type: TypeYear, Fields: []ValueField{FieldYear}},
	TypeFeetInches:    {Type: TypeFeetInches, Fields: []ValueField{FieldFeetInches}},
	TypePounds:        {Type: TypePounds, Fields: []ValueField{FieldNumber}},
	TypeScale:         {Type: TypeScale, Fields: []ValueField{FieldNumber}, Ranged: true},
	TypeChoice:        {Type: TypeChoice, Fields: []ValueField{FieldChoice}},
	TypeChoiceRef:     {Type: TypeChoiceRef, Fields: []ValueField{FieldChoice}},
	TypeChoices:       {Type: TypeChoices, Fields: []ValueField{FieldChoices}},
	TypeOpenChoice:    {Type: TypeOpenChoice, Fields: []ValueField{FieldText, FieldChoice}},
	TypeBloodPressure: {Type: TypeBloodPressure, Fields: []ValueField{FieldBloodPressure}},
	TypeFile:          {Type: TypeFile, Fields: []ValueField{FieldFile}},
	TypeBullet:        {Type: TypeBullet, Fields: []ValueField{FieldText}},
}

// SchemaFor looks up the schema of a question type.
func SchemaFor(t QuestionType) (TypeSchema, bool) {
	s, ok := typeSchemas[t]
	return s, ok
}

// QuestionTypes returns every known question type in a stable order.
func QuestionTypes() []QuestionType {
	out := make([]QuestionType, 0, len(typeSchemas))
	for t := range typeSchemas {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t QuestionType) Valid() bool {
	_, ok := typeSchemas[t]
	return ok
}
