package main

import (
	"testing"

	"github.com/MatthiasValvekens/xhci-abi/inspector"
	"github.com/efficientgo/core/testutil"
	"github.com/spf13/viper"
)

func TestConfiguredRegions(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("regions", []interface{}{
		map[string]interface{}{"name": "cmd-ring", "kind": "trbs", "address": "0x10000", "count": 16},
		map[string]interface{}{"name": "erst", "kind": "erst", "address": 69632, "count": "1"},
	})
	regions, err := getConfiguredRegions()
	testutil.Ok(t, err)
	testutil.Equals(t, []inspector.Region{
		{Name: "cmd-ring", Kind: inspector.KindTRBs, Address: 0x10000, Count: 16},
		{Name: "erst", Kind: inspector.KindERST, Address: 0x11000, Count: 1},
	}, regions)

	viper.Set("regions", []interface{}{
		map[string]interface{}{"name": "ring", "kind": "trbs", "adress": "0x10000"},
	})
	_, err = getConfiguredRegions()
	testutil.NotOk(t, err)

	viper.Set("regions", map[string]interface{}{"name": "ring"})
	_, err = getConfiguredRegions()
	testutil.NotOk(t, err)
}

func TestConfiguredImages(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("images", []interface{}{
		map[string]interface{}{"path": "/var/lib/guest/low.bin", "base": 0},
	})
	viper.Set("image", "/tmp/high.bin")
	viper.Set("image-base", "0x100000000")

	images, err := getConfiguredImages()
	testutil.Ok(t, err)
	testutil.Equals(t, []imageSpec{
		{Path: "/var/lib/guest/low.bin", Base: 0},
		{Path: "/tmp/high.bin", Base: 0x100000000},
	}, images)

	viper.Set("image-base", "high")
	_, err = getConfiguredImages()
	testutil.NotOk(t, err)
}
