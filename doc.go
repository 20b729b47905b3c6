// ARM SMMU v3 translation core
// https://github.com/usbarmory/smmu
//
// Copyright (c) John Greninger
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package smmu provides the Result/Fault model shared by the translation
// core of a software model of an ARM SMMU v3 (System Memory Management
// Unit, version 3): the identifier and address types, the page
// permission and security-state enumerations, and the uniform
// success/error discipline (Result) that the addrspace and tlb packages
// build on.
//
// The package implements no translation logic itself — see addrspace
// for the per-PASID page table and tlb for the bounded LRU translation
// cache.
package smmu
