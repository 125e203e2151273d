package ir

// Kind tags the operation an Instruction performs. The set is closed: the optimizer
// dispatches on Kind, never on a type switch over a per-op struct hierarchy.
type Kind int

const (
	KindInvalid Kind = iota

	// KindAllocActivation introduces a new activation buffer. Operands[0] is the
	// AllocActivation value itself, with OperandKind Out.
	KindAllocActivation
	// KindDeallocActivation ends the lifetime of an activation. Operands[0] is the
	// AllocActivation value, with OperandKind Out (see DESIGN.md: symmetric with the
	// Out that begins the lifetime, rather than a real read).
	KindDeallocActivation
	// KindTensorView declares a zero-copy reinterpretation of another value (see
	// value.go). It carries no Operands; the declared value hangs off Instruction.View.
	KindTensorView
	// KindCopy copies the contents of Operands[1] (In) into Operands[0] (Out).
	KindCopy
	// KindDebugPrint is a diagnostic tap inserted by §4.11; its one operand is always
	// In, regardless of how the tapped value was used at the tap point.
	KindDebugPrint
	// KindSplat fills its destination with a constant.
	KindSplat
	// KindReshape reinterprets its source under a new shape, materializing the copy
	// (unlike TensorView, which is pure metadata).
	KindReshape
	// KindTranspose permutes axes of its source into its destination.
	KindTranspose
	// KindElementAdd, KindElementMul, KindElementMax are elementwise binary
	// arithmetic kinds.
	KindElementAdd
	KindElementMul
	KindElementMax
	// KindPoolMaxWithXY is max-pooling that also records argmax coordinates into a
	// scratch buffer, used by backward passes; KindPoolMax is the inference-only form.
	KindPoolMaxWithXY
	KindPoolMax
	// KindSoftMaxWithE keeps the exponentiated intermediate around (training);
	// KindSoftMax is the inference-only form.
	KindSoftMaxWithE
	KindSoftMax
	// KindConv2D is a 2D convolution; it never permits in-place operand aliasing.
	KindConv2D

	numKinds
)

var kindNames = [numKinds]string{
	KindInvalid:           "Invalid",
	KindAllocActivation:   "AllocActivation",
	KindDeallocActivation: "DeallocActivation",
	KindTensorView:        "TensorView",
	KindCopy:              "Copy",
	KindDebugPrint:        "DebugPrint",
	KindSplat:             "Splat",
	KindReshape:           "Reshape",
	KindTranspose:         "Transpose",
	KindElementAdd:        "ElementAdd",
	KindElementMul:        "ElementMul",
	KindElementMax:        "ElementMax",
	KindPoolMaxWithXY:     "PoolMaxWithXY",
	KindPoolMax:           "PoolMax",
	KindSoftMaxWithE:      "SoftMaxWithE",
	KindSoftMax:           "SoftMax",
	KindConv2D:            "Conv2D",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) || kindNames[k] == "" {
		return "UnknownKind"
	}
	return kindNames[k]
}

// IsAllocOrDealloc returns whether the kind is KindAllocActivation or
// KindDeallocActivation.
func (k Kind) IsAllocOrDealloc() bool {
	return k == KindAllocActivation || k == KindDeallocActivation
}

// OperandKind is the access mode of an operand slot: read-only, write-only or
// read-write.
type OperandKind int

const (
	In OperandKind = iota
	Out
	InOut
)

func (k OperandKind) String() string {
	switch k {
	case In:
		return "In"
	case Out:
		return "Out"
	case InOut:
		return "InOut"
	}
	return "UnknownOperandKind"
}

// ReadsValue returns whether this operand kind counts as a read of its underlying
// location at the point in the stream where the instruction executes.
func (k OperandKind) ReadsValue() bool { return k != Out }

// WritesValue returns whether this operand kind counts as a write (a mutation) of
// its underlying location.
func (k OperandKind) WritesValue() bool { return k != In }

// LivenessOrder ranks operand kinds for the §4.7 sort: In < InOut < Out. This makes a
// self read-modify-write within one instruction extend the live interval instead of
// opening a spurious new one.
func LivenessOrder(k OperandKind) int {
	switch k {
	case In:
		return 0
	case InOut:
		return 1
	case Out:
		return 2
	}
	return 3
}
