package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/course"
)

// Encode serializes items as an ordered JSON array.
func Encode(items []LineItem) []byte {
	var e jx.Encoder
	e.ArrStart()
	for i := range items {
		items[i].encode(&e)
	}
	e.ArrEnd()
	return e.Bytes()
}

// Decode parses a blob written by Encode. Entries repeating an earlier id
// are dropped so the one-per-course invariant holds for any input.
func Decode(data []byte) ([]LineItem, error) {
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		if err := d.Null(); err != nil {
			return nil, errors.Wrap(err, "decode cart")
		}
		return []LineItem{}, end(d)
	}

	items := []LineItem{}
	seen := make(map[int]struct{})
	if err := d.Arr(func(d *jx.Decoder) error {
		var it LineItem
		if err := it.decode(d); err != nil {
			return err
		}
		if _, dup := seen[it.ID]; dup {
			return nil
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	if err := end(d); err != nil {
		return nil, err
	}
	return items, nil
}

// end rejects anything but whitespace after the top-level value.
func end(d *jx.Decoder) error {
	if tt := d.Next(); tt != jx.Invalid {
		return errors.Errorf("decode cart: unexpected %s after value", tt)
	}
	return nil
}

func (it *LineItem) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int(it.ID)
	e.FieldStart("title")
	e.Str(it.Title)
	e.FieldStart("level")
	e.Str(string(it.Level))
	e.FieldStart("price")
	e.Num(jx.Num(it.Price.String()))
	e.FieldStart("currency")
	e.Str(it.Currency)
	e.FieldStart("duration")
	e.Str(it.Duration)
	e.FieldStart("lessons")
	e.Int(it.Lessons)
	e.FieldStart("image")
	e.Str(it.Image)
	e.ObjEnd()
}

func (it *LineItem) decode(d *jx.Decoder) error {
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Int()
		case "title":
			it.Title, err = d.Str()
		case "level":
			var s string
			if s, err = d.Str(); err == nil {
				it.Level, err = course.ParseLevel(s)
			}
		case "price":
			it.Price, err = decodeAmount(d)
		case "currency":
			it.Currency, err = d.Str()
		case "duration":
			it.Duration, err = d.Str()
		case "lessons":
			it.Lessons, err = d.Int()
		case "image":
			it.Image, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		return err
	}

	switch {
	case it.ID <= 0:
		return errors.Errorf("line item id must be positive, got %d", it.ID)
	case it.Price.IsNegative():
		return errors.Errorf("line item %d: negative price", it.ID)
	}
	return nil
}

// decodeAmount accepts both JSON numbers and numeric strings.
func decodeAmount(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
