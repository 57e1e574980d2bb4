package conformance

// Method is the RPC name type shared by the conformance server and its
// clients. Untyped string constants convert to it at registration and
// call sites.
type Method string

// Status is a string-backed enum.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusClosed  Status = "CLOSED"
)

// Point is a simple 2D point.
type Point struct {
	X float64 `json:"x" querywire:"x"`
	Y float64 `json:"y" querywire:"y"`
}

// BoundingBox contains two nested Points and a label.
type BoundingBox struct {
	TopLeft     Point  `json:"top_left" querywire:"top_left"`
	BottomRight Point  `json:"bottom_right" querywire:"bottom_right"`
	Label       string `json:"label" querywire:"label"`
}

// AllTypes demonstrates comprehensive type coverage.
type AllTypes struct {
	StrField       string            `json:"str_field" querywire:"str_field"`
	BytesField     []byte            `json:"bytes_field" querywire:"bytes_field"`
	IntField       int64             `json:"int_field" querywire:"int_field"`
	FloatField     float64           `json:"float_field" querywire:"float_field"`
	BoolField      bool              `json:"bool_field" querywire:"bool_field"`
	ListOfInt      []int64           `json:"list_of_int" querywire:"list_of_int"`
	ListOfStr      []string          `json:"list_of_str" querywire:"list_of_str"`
	DictField      map[string]int64  `json:"dict_field" querywire:"dict_field"`
	EnumField      Status            `json:"enum_field" querywire:"enum_field"`
	NestedPoint    Point             `json:"nested_point" querywire:"nested_point"`
	OptionalStr    *string           `json:"optional_str" querywire:"optional_str"`
	OptionalInt    *int64            `json:"optional_int" querywire:"optional_int"`
	OptionalNested *Point            `json:"optional_nested" querywire:"optional_nested"`
	ListOfNested   []Point           `json:"list_of_nested" querywire:"list_of_nested"`
	AnnotatedInt32 int32             `json:"annotated_int32" querywire:"annotated_int32"`
	AnnotatedFloat float32           `json:"annotated_float32" querywire:"annotated_float32"`
	NestedList     [][]int64         `json:"nested_list" querywire:"nested_list"`
	DictStrStr     map[string]string `json:"dict_str_str" querywire:"dict_str_str"`
}
