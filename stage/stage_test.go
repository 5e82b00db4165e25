package stage

import (
	"encoding/json"
	"testing"

	"go.viam.com/test"
)

func TestParse(t *testing.T) {
	s, err := Parse("Forefoot")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, Forefoot)

	s, err = Parse(" heel ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldEqual, Heel)

	_, err = Parse("F")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown stage")
}

func TestOrder(t *testing.T) {
	test.That(t, All(), test.ShouldResemble, []Stage{Forefoot, Heel})
	test.That(t, Stage(7).Valid(), test.ShouldBeFalse)
}

func TestJSONKeys(t *testing.T) {
	out, err := json.Marshal(map[Stage]float64{Forefoot: 1.5, Heel: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `{"forefoot":1.5,"heel":2}`)

	var back map[Stage]float64
	test.That(t, json.Unmarshal(out, &back), test.ShouldBeNil)
	test.That(t, back[Heel], test.ShouldEqual, 2.0)

	test.That(t, json.Unmarshal([]byte(`{"toe":1}`), &back), test.ShouldNotBeNil)
}
