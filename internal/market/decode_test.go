package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
)

func TestDecode_Accessory(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	page, err := Decode([]byte(onePage), loc)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Listings, 1)

	l := page.Listings[0]
	assert.Equal(t, model.GradeAncient, l.Grade)
	assert.Equal(t, 2, l.TradeLimit)
	assert.True(t, l.Expiry.Equal(time.Date(2025, 3, 1, 12, 30, 0, 0, loc)))
	assert.NotEqual(t, [16]byte{}, [16]byte(l.ID))

	acc, ok := l.Accessory()
	require.True(t, ok)
	assert.Equal(t, 91, acc.Quality)
	assert.Equal(t, 2, acc.Level)
	require.Len(t, acc.Options, 2)

	add, ok := acc.Option(model.OptAdditionalDamage)
	require.True(t, ok)
	assert.Equal(t, model.BucketHigh, add.Bucket)

	flat, ok := acc.Option(model.OptFlatAttack)
	require.True(t, ok)
	assert.Equal(t, model.BucketMid, flat.Bucket)
	assert.False(t, flat.Percent)
}

func TestDecode_Bracelet(t *testing.T) {
	body := `{"TotalCount":1,"Items":[{
		"Name":"찬란한 구원자의 팔찌","Grade":"고대","AuctionInfo":{"BuyPrice":90000,"EndDate":"2025-03-01T00:00:00","TradeAllowCount":3},
		"Options":[
			{"Type":"STAT","OptionName":"치명","Value":95},
			{"Type":"STAT","OptionName":"신속","Value":71},
			{"Type":"BRACELET_SPECIAL_EFFECTS","OptionName":"공격 및 이동 속도 증가","Value":4},
			{"Type":"BRACELET_RANDOM_SLOT","OptionName":"부여 효과 수량","Value":1},
			{"Type":"ARK_PASSIVE","OptionName":"도약","Value":1}
		]}]}`
	page, err := Decode([]byte(body), time.UTC)
	require.NoError(t, err)
	require.Len(t, page.Listings, 1)

	b, ok := page.Listings[0].Bracelet()
	require.True(t, ok)
	assert.Equal(t, 3, b.FixedCount)
	assert.Equal(t, 1, b.ExtraSlots)
	assert.Len(t, b.Combat, 2)
	assert.Empty(t, b.Base)
	assert.True(t, b.HasSpecial(model.SpeedEffect))
}

func TestDecode_DropsBadRows(t *testing.T) {
	body := `{"TotalCount":3,"Items":[
		{"Name":"무언가 목걸이","Grade":"전설","GradeQuality":80,"AuctionInfo":{"EndDate":"2025-03-01T00:00:00"}},
		{"Name":"이상한 물건","Grade":"고대","GradeQuality":80,"AuctionInfo":{"EndDate":"2025-03-01T00:00:00"}},
		{"Name":"고대 반지","Grade":"고대","GradeQuality":80,"AuctionInfo":{"EndDate":"not a date"}}
	]}`
	page, err := Decode([]byte(body), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, page.Listings)
	assert.Equal(t, 3, page.Dropped)
	assert.True(t, page.Empty())
}

func TestDecode_Envelope(t *testing.T) {
	_, err := Decode([]byte(`not json`), time.UTC)
	assert.ErrorIs(t, err, ErrMalformed)

	page, err := Decode([]byte(`{"TotalCount":0,"Items":null}`), time.UTC)
	require.NoError(t, err)
	assert.True(t, page.Empty())
}

func TestNormalizeOptionName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw     string
		percent bool
		want    model.OptionName
		ok      bool
	}{
		{"공격력 ", true, model.OptAttackPercent, true},
		{"공격력 ", false, model.OptFlatAttack, true},
		{"무기 공격력 ", true, model.OptWeaponAttackPercent, true},
		{"무기 공격력 ", false, model.OptFlatWeaponAttack, true},
		{"치명타 피해", true, model.OptCritDamage, true},
		{"낙인력", true, model.OptBrandPower, true},
		{"힘", false, "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeOptionName(tc.raw, tc.percent)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
