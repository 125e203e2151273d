package shapes

// DType indicates the type of the unit element of a tensor location: an AllocActivation
// buffer or a WeightVar.
type DType int32

const (
	InvalidDType DType = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	UInt8
	UInt16
	UInt32
	UInt64
	Float16
	Float32
	Float64
	BFloat16
)

var dtypeNames = map[DType]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	UInt8:        "UInt8",
	UInt16:       "UInt16",
	UInt32:       "UInt32",
	UInt64:       "UInt64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
	BFloat16:     "BFloat16",
}

func (dtype DType) String() string {
	if name, ok := dtypeNames[dtype]; ok {
		return name
	}
	return "UnknownDType"
}

// IsFloat returns whether dtype is one of the floating point types.
func (dtype DType) IsFloat() bool {
	switch dtype {
	case Float16, Float32, Float64, BFloat16:
		return true
	}
	return false
}

// IsInt returns whether dtype is one of the integer types.
func (dtype DType) IsInt() bool {
	switch dtype {
	case Int8, Int16, Int32, Int64, UInt8, UInt16, UInt32, UInt64:
		return true
	}
	return false
}

// Memory returns the number of bytes used to store one element of this DType.
func (dtype DType) Memory() uintptr {
	switch dtype {
	case Bool, Int8, UInt8:
		return 1
	case Int16, UInt16, Float16, BFloat16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Int64, UInt64, Float64:
		return 8
	}
	return 0
}
