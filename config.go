// SPDX-License-Identifier: GPL-2.0-only

package main

// This project is GPL-2.0, but this file contains code from generic-device-plugin.
// Original license notice below.
//
// Copyright 2020 the generic-device-plugin authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

import (
	"fmt"
	"strings"
	"time"

	"github.com/MatthiasValvekens/xhci-abi/inspector"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// imageSpec maps a raw memory dump into the guest address space.
type imageSpec struct {
	Path string `json:"path"`
	Base uint64 `json:"base"`
}

// initConfig defines config flags, config file, and envs
func initConfig() error {
	cfgFile := flag.String("config", "", "Path to the config file.")
	flag.String("log-level", logLevelInfo, fmt.Sprintf("Log level to use. Possible values: %s", availableLogLevels))
	flag.String("listen", ":8080", "The address at which to listen for health and metrics.")
	flag.String("grpc-listen", "", "The address at which to serve gRPC health checks; prefix with unix: for a socket. Disabled if empty.")
	flag.String("image", "", "Path to a guest memory dump, in addition to the images in the config file.")
	flag.String("image-base", "0", "Guest physical address of the image given with --image.")
	flag.Duration("interval", 30*time.Second, "How often to rescan the configured regions.")
	flag.Bool("once", false, "Scan once, log the result and exit.")

	flag.Parse()
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		return fmt.Errorf("failed to bind config: %w", err)
	}

	if *cfgFile != "" {
		viper.SetConfigFile(*cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/xhci-inspector/")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
		} else {
			// Config file was found but another error was produced
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return nil
}

// decodeList decodes a list-valued config key into out, one element at a
// time. Addresses may be given as integers or as 0x-prefixed strings.
func decodeList[T any](key string) ([]T, error) {
	raw := viper.Get(key)
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("failed to decode %s: unexpected type: %T", key, raw)
	}

	result := make([]T, len(items))
	for i, def := range items {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &result[i],
			TagName:          "json",
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		})
		if err != nil {
			return nil, err
		}

		if err := decoder.Decode(def); err != nil {
			return nil, fmt.Errorf("failed to decode %s entry %q: %w", key, def, err)
		}
	}
	return result, nil
}

func getConfiguredRegions() ([]inspector.Region, error) {
	return decodeList[inspector.Region]("regions")
}

func getConfiguredImages() ([]imageSpec, error) {
	images, err := decodeList[imageSpec]("images")
	if err != nil {
		return nil, err
	}
	if p := viper.GetString("image"); p != "" {
		var extra imageSpec
		if err := mapstructure.WeakDecode(map[string]interface{}{
			"Path": p,
			"Base": viper.GetString("image-base"),
		}, &extra); err != nil {
			return nil, fmt.Errorf("failed to parse image-base: %w", err)
		}
		images = append(images, extra)
	}
	return images, nil
}
