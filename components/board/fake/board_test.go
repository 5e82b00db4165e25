package fake

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestFakePinRecords(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()

	p, err := b.GPIOPinByName("34")
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 3; i++ {
		test.That(t, p.Set(ctx, true, nil), test.ShouldBeNil)
		test.That(t, p.Set(ctx, false, nil), test.ShouldBeNil)
	}

	same, err := b.Pin("34")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, same.RisingEdges(), test.ShouldEqual, 3)
	test.That(t, same.History(), test.ShouldResemble, []bool{true, false, true, false, true, false})
	test.That(t, same.High(), test.ShouldBeFalse)

	same.Reset()
	test.That(t, same.RisingEdges(), test.ShouldEqual, 0)
	test.That(t, same.History(), test.ShouldBeEmpty)
}

func TestFakePinInput(t *testing.T) {
	ctx := context.Background()
	b := NewBoard()
	p, err := b.Pin("4")
	test.That(t, err, test.ShouldBeNil)

	high, err := p.Get(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeFalse)

	levels := []bool{true, false}
	p.Input = func() (bool, error) {
		v := levels[0]
		levels = levels[1:]
		return v, nil
	}
	high, _ = p.Get(ctx, nil)
	test.That(t, high, test.ShouldBeTrue)
	high, _ = p.Get(ctx, nil)
	test.That(t, high, test.ShouldBeFalse)

	p.Input = func() (bool, error) { return false, errors.New("line gone") }
	_, err = p.Get(ctx, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFakePinOnSet(t *testing.T) {
	b := NewBoard()
	p, _ := b.Pin("5")
	var seen []bool
	p.OnSet = func(high bool) { seen = append(seen, high) }
	test.That(t, p.Set(context.Background(), true, nil), test.ShouldBeNil)
	test.That(t, seen, test.ShouldResemble, []bool{true})
}

func TestFakeBoardClose(t *testing.T) {
	b := NewBoard()
	_, err := b.GPIOPinByName("")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, b.Close(context.Background()), test.ShouldBeNil)
	_, err = b.GPIOPinByName("35")
	test.That(t, err, test.ShouldNotBeNil)
}
