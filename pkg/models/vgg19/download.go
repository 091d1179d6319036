// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vgg19

import (
	"path"

	"github.com/gomlx/framepred/internal/downloader"
	"github.com/gomlx/framepred/internal/hdf5"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// WeightsURL is the URL of the Keras VGG19 weights without the classification top, trained on ImageNet.
	WeightsURL = "https://storage.googleapis.com/tensorflow/keras-applications/vgg19/vgg19_weights_tf_dim_ordering_tf_kernels_notop.h5"

	// WeightsH5Checksum is the MD5 checksum of the weights file.
	WeightsH5Checksum = "253f8cb515780f3b799900260a226db6"

	// WeightsH5Name is the name of the local ".h5" file with the weights.
	WeightsH5Name = "vgg19_notop.h5"

	// UnpackedWeightsName is the name of the subdirectory that holds the unpacked weights.
	UnpackedWeightsName = "gomlx_weights"
)

// DownloadAndUnpackWeights to baseDir, if not there yet.
//
// It is verbose and displays a progress bar while downloading or unpacking, and quiet if there is nothing to do.
func DownloadAndUnpackWeights(baseDir string) error {
	baseDir, err := fsutil.ReplaceTildeInDir(baseDir)
	if err != nil {
		return err
	}
	unpackedPath := path.Join(baseDir, UnpackedWeightsName)
	exists, err := fsutil.FileExists(unpackedPath)
	if err != nil || exists {
		return err
	}

	h5Path := path.Join(baseDir, WeightsH5Name)
	if err = downloader.DownloadIfMissing(WeightsURL, h5Path, WeightsH5Checksum); err != nil {
		return errors.WithMessage(err, "downloading VGG19 weights")
	}
	klog.Infof("Unpacking VGG19 weights to %s", unpackedPath)
	if err = hdf5.Unpack(unpackedPath, h5Path).ProgressBar().Done(); err != nil {
		return errors.WithMessage(err, "unpacking VGG19 weights")
	}
	return nil
}

// PathToTensor returns the path to the unpacked tensor named tensorName in the ".h5" file.
func PathToTensor(baseDir, tensorName string) string {
	return path.Join(fsutil.MustReplaceTildeInDir(baseDir), UnpackedWeightsName, tensorName)
}

// kerasTensorNames lists the names the Keras weights files have used for the variable of a layer, from the
// oldest format ("<layer>/<layer>_W_1:0") to the newest ("<layer>/<layer>/kernel:0").
func kerasTensorNames(layerName string, legacySuffixes []string, variable string) []string {
	names := make([]string, 0, len(legacySuffixes)+1)
	for _, suffix := range legacySuffixes {
		names = append(names, layerName+"/"+layerName+"_"+suffix)
	}
	return append(names, layerName+"/"+layerName+"/"+variable+":0")
}

// findTensorPath returns the path of the first tensor found among the candidate names.
func findTensorPath(baseDir string, candidates []string) (string, error) {
	for _, name := range candidates {
		tensorPath := PathToTensor(baseDir, name)
		exists, err := fsutil.FileExists(tensorPath)
		if err != nil {
			return "", err
		}
		if exists {
			return tensorPath, nil
		}
	}
	return "", errors.Errorf("none of the tensors %q found in %q", candidates, path.Join(baseDir, UnpackedWeightsName))
}
