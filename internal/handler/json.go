package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/order"
	"github.com/xenking/trading-academy/internal/view"
)

// maxBodySize bounds request bodies; every request document is a single
// small object.
const maxBodySize = 1 << 16

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// decodeBody reads a JSON object from r, calling field for every key.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrapf(errBadRequest, "invalid body: %s", err)
	}
	return nil
}

func encodeError(code int, msg string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	return e.Bytes()
}

func amount(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func strs(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func encodeCardFields(e *jx.Encoder, c *view.Card) {
	e.FieldStart("id")
	e.Int(c.ID)
	e.FieldStart("title")
	e.Str(c.Title)
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("level")
	e.Str(string(c.Level))
	e.FieldStart("levelLabel")
	e.Str(c.LevelLabel)
	e.FieldStart("price")
	amount(e, c.Price)
	e.FieldStart("priceLabel")
	e.Str(c.PriceLabel)
	e.FieldStart("duration")
	e.Str(c.Duration)
	e.FieldStart("lessons")
	e.Int(c.Lessons)
	e.FieldStart("image")
	e.Str(c.Image)
	e.FieldStart("features")
	strs(e, c.Features)
	e.FieldStart("moreFeatures")
	e.Int(c.MoreFeatures)
	e.FieldStart("inCart")
	e.Bool(c.InCart)
}

func encodeCards(e *jx.Encoder, cards []view.Card) {
	e.ArrStart()
	for i := range cards {
		e.ObjStart()
		encodeCardFields(e, &cards[i])
		e.ObjEnd()
	}
	e.ArrEnd()
}

func encodeListing(l view.Listing) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("level")
	e.Str(l.Level)
	e.FieldStart("query")
	e.Str(l.Query)
	e.FieldStart("empty")
	e.Bool(l.Empty)
	e.FieldStart("badge")
	e.Int(l.Badge)
	e.FieldStart("courses")
	encodeCards(&e, l.Cards)
	e.ObjEnd()
	return e.Bytes()
}

func encodeDetail(d view.Detail) []byte {
	var e jx.Encoder
	e.ObjStart()
	encodeCardFields(&e, &d.Card)
	e.FieldStart("allFeatures")
	strs(&e, d.AllFeatures)

	e.FieldStart("curriculum")
	e.ArrStart()
	for _, m := range d.Curriculum {
		e.ObjStart()
		e.FieldStart("number")
		e.Int(m.Number)
		e.FieldStart("title")
		e.Str(m.Title)
		e.FieldStart("lessons")
		strs(&e, m.Lessons)
		e.FieldStart("expanded")
		e.Bool(m.Expanded)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("instructors")
	e.ArrStart()
	for _, in := range d.Instructors {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(in.Name)
		e.FieldStart("role")
		e.Str(in.Role)
		e.FieldStart("description")
		e.Str(in.Description)
		e.FieldStart("capabilities")
		strs(&e, in.Capabilities)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("reviews")
	e.ArrStart()
	for _, rv := range d.Reviews {
		e.ObjStart()
		e.FieldStart("author")
		e.Str(rv.Author)
		e.FieldStart("rating")
		e.Int(rv.Rating)
		e.FieldStart("stars")
		e.Str(rv.Stars)
		e.FieldStart("comment")
		e.Str(rv.Comment)
		e.FieldStart("date")
		e.Str(rv.Date)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("agents")
	strs(&e, d.Agents)
	e.FieldStart("related")
	encodeCards(&e, d.Related)
	e.FieldStart("lastUpdated")
	e.Str(d.LastUpdated)
	e.FieldStart("nextUpdate")
	e.Str(d.NextUpdate)
	e.FieldStart("contentVersion")
	e.Str(d.ContentVersion)
	e.FieldStart("badge")
	e.Int(d.Badge)
	e.ObjEnd()
	return e.Bytes()
}

func encodeCart(v view.CartView) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range v.Lines {
		e.ObjStart()
		e.FieldStart("index")
		e.Int(l.Index)
		e.FieldStart("id")
		e.Int(l.ID)
		e.FieldStart("title")
		e.Str(l.Title)
		e.FieldStart("levelLabel")
		e.Str(l.LevelLabel)
		e.FieldStart("duration")
		e.Str(l.Duration)
		e.FieldStart("lessons")
		e.Int(l.Lessons)
		e.FieldStart("image")
		e.Str(l.Image)
		e.FieldStart("price")
		amount(&e, l.Price)
		e.FieldStart("priceLabel")
		e.Str(l.PriceLabel)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	amount(&e, v.Total)
	e.FieldStart("totalLabel")
	e.Str(v.TotalLabel)
	e.FieldStart("empty")
	e.Bool(v.Empty)
	e.FieldStart("badge")
	e.Int(v.Badge)
	e.ObjEnd()
	return e.Bytes()
}

func encodeCheckout(v view.CheckoutView) []byte {
	var e jx.Encoder
	e.ObjStart()

	s := v.Summary
	e.FieldStart("summary")
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range s.Lines {
		e.ObjStart()
		e.FieldStart("id")
		e.Int(l.ID)
		e.FieldStart("title")
		e.Str(l.Title)
		e.FieldStart("price")
		amount(&e, l.Price)
		e.FieldStart("priceLabel")
		e.Str(l.PriceLabel)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	amount(&e, s.Subtotal)
	e.FieldStart("tax")
	amount(&e, s.Tax)
	e.FieldStart("total")
	amount(&e, s.Total)
	e.FieldStart("subtotalLabel")
	e.Str(s.SubtotalLabel)
	e.FieldStart("taxLabel")
	e.Str(s.TaxLabel)
	e.FieldStart("totalLabel")
	e.Str(s.TotalLabel)
	e.FieldStart("empty")
	e.Bool(s.Empty)
	e.ObjEnd()

	p := v.Payment
	e.FieldStart("payment")
	e.ObjStart()
	e.FieldStart("phase")
	e.Str(p.Phase)
	e.FieldStart("method")
	e.Str(string(p.Method))
	e.FieldStart("methods")
	e.ArrStart()
	for _, m := range p.Methods {
		e.ObjStart()
		e.FieldStart("method")
		e.Str(string(m.Method))
		e.FieldStart("label")
		e.Str(m.Label)
		e.FieldStart("selected")
		e.Bool(m.Selected)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("canSubmit")
	e.Bool(p.CanSubmit)
	e.FieldStart("message")
	e.Str(p.Message)
	if p.OrderID != [16]byte{} {
		e.FieldStart("orderId")
		e.Str(p.OrderID.String())
	}
	e.ObjEnd()

	e.FieldStart("badge")
	e.Int(v.Badge)
	e.ObjEnd()
	return e.Bytes()
}

func encodeOrders(orders []order.Order) []byte {
	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		o := &orders[i]
		e.ObjStart()
		e.FieldStart("id")
		e.Str(o.ID.String())
		e.FieldStart("status")
		e.Str(string(o.Status))
		e.FieldStart("method")
		e.Str(o.Method)
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range o.Items {
			e.ObjStart()
			e.FieldStart("courseId")
			e.Int(it.CourseID)
			e.FieldStart("title")
			e.Str(it.Title)
			e.FieldStart("price")
			amount(&e, it.Price)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("subtotal")
		amount(&e, o.Subtotal)
		e.FieldStart("tax")
		amount(&e, o.Tax)
		e.FieldStart("total")
		amount(&e, o.Total)
		e.FieldStart("currency")
		e.Str(o.Currency)
		e.FieldStart("createdAt")
		e.Str(o.CreatedAt.Format(time.RFC3339))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
