package runtime

import (
	"strconv"

	"github.com/axlang/ax/internal/diag"
	"github.com/axlang/ax/internal/object"
)

// addConvert wires Convert.toString(1)/toInt(1)/toFloat(1)/toBool(1), the
// binding the parser's `cast(expr, "type")` sugar lowers to
// (codegen.genFunctionCall's native-sugar fallback path).
func addConvert(reg map[string]object.NativeFunc) {
	reg["Convert_toString"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("Convert.toString", 1, len(args))
		}
		return h.NewString(displayString(h, args[0])), nil
	}

	reg["Convert_toInt"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("Convert.toInt", 1, len(args))
		}
		o := h.Heap().Get(args[0])
		if o == nil {
			return 0, typeError("Convert.toInt on a freed value")
		}
		switch o.Kind {
		case object.KindInt:
			return h.NewInt(o.Int), nil
		case object.KindFloat:
			return h.NewInt(int64(o.Float)), nil
		case object.KindString:
			v, err := strconv.ParseInt(o.Str, 10, 64)
			if err != nil {
				return 0, conversionError("cannot convert '" + o.Str + "' to integer")
			}
			return h.NewInt(v), nil
		default:
			return 0, conversionError("cannot convert " + o.Kind.String() + " to integer")
		}
	}

	reg["Convert_toFloat"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("Convert.toFloat", 1, len(args))
		}
		o := h.Heap().Get(args[0])
		if o == nil {
			return 0, typeError("Convert.toFloat on a freed value")
		}
		switch o.Kind {
		case object.KindInt:
			return h.NewFloat(float64(o.Int)), nil
		case object.KindFloat:
			return h.NewFloat(o.Float), nil
		case object.KindString:
			v, err := strconv.ParseFloat(o.Str, 64)
			if err != nil {
				return 0, conversionError("cannot convert '" + o.Str + "' to float")
			}
			return h.NewFloat(v), nil
		default:
			return 0, conversionError("cannot convert " + o.Kind.String() + " to float")
		}
	}

	reg["Convert_toBool"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 1 {
			return 0, arityError("Convert.toBool", 1, len(args))
		}
		o := h.Heap().Get(args[0])
		truthy := o != nil
		if o != nil {
			switch o.Kind {
			case object.KindNull:
				truthy = false
			case object.KindInt:
				truthy = o.Int != 0
			case object.KindFloat:
				truthy = o.Float != 0
			case object.KindString:
				truthy = o.Str != ""
			}
		}
		if truthy {
			return h.NewInt(1), nil
		}
		return h.NewInt(0), nil
	}
}

func conversionError(detail string) error {
	return &diag.Diagnostic{Kind: diag.ConversionFailure, Severity: diag.Fatal, Loc: diag.Location{File: "<runtime>"}, Detail: detail}
}
